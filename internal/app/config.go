package app

import (
	"path/filepath"
	"time"

	"github.com/audisee/docx2daisy/internal/logger"
	"github.com/audisee/docx2daisy/internal/utils"
)

type Config struct {
	Port      string
	QueueName string
	JobTTL    time.Duration

	DataDir    string
	UploadDir  string
	WorkDir    string
	ResultsDir string

	// EmbeddedWorkers runs the worker pool inside the API process, the
	// single-binary deployment mode.
	EmbeddedWorkers bool
}

func LoadConfig(log *logger.Logger) Config {
	port := utils.GetEnv("PORT", "8080", log)
	queueName := utils.GetEnv("QUEUE_NAME", "queue", log)
	jobTTLSeconds := utils.GetEnvAsInt("JOB_TTL_SECONDS", 86400, log)
	dataDir := utils.GetEnv("DATA_DIR", "./data", log)
	embedded := utils.GetEnv("WORKER_EMBEDDED", "0", log)

	return Config{
		Port:            port,
		QueueName:       queueName,
		JobTTL:          time.Duration(jobTTLSeconds) * time.Second,
		DataDir:         dataDir,
		UploadDir:       filepath.Join(dataDir, "uploads"),
		WorkDir:         filepath.Join(dataDir, "work"),
		ResultsDir:      filepath.Join(dataDir, "results"),
		EmbeddedWorkers: embedded == "1" || embedded == "true",
	}
}
