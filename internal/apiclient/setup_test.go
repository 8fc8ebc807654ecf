package apiclient

import (
	"os"
	"testing"

	"paylive-be/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init("test")
	os.Exit(m.Run())
}
