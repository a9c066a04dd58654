package memory

import (
	"testing"

	"budget/internal/storage"
	"budget/internal/storage/storagetest"

	"github.com/stretchr/testify/suite"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storagetest.Suite{New: func() storage.Store { return New() }})
}
