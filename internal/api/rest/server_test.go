package rest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeoutOrDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 30*time.Second, timeoutOrDefault(30))

	// Незаданное значение конфигурации не должно отключать таймаут
	assert.Equal(t, 15*time.Second, timeoutOrDefault(0))
	assert.Equal(t, 15*time.Second, timeoutOrDefault(-1))
}
