package storage

// Record-store path taxonomy. Jobs travel
// queued -> running -> {finished | deleted}; status and result records
// stay put under their backend.
const (
	configsPath    = "backends/configs"
	publicKeysPath = "backends/public_keys"
)

func queuedPath(backend string) string   { return "jobs/queued/" + backend }
func runningPath(backend string) string  { return "jobs/running/" + backend }
func finishedPath(backend string) string { return "jobs/finished/" + backend }
func deletedPath(backend string) string  { return "jobs/deleted/" + backend }
func statusPath(backend string) string   { return "status/" + backend }
func resultsPath(backend string) string  { return "results/" + backend }
