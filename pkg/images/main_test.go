package images

import (
	"testing"

	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}
