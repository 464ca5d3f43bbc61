package extract

import (
	"testing"

	"rentora/internal/schema"
)

func mustRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	return schema.MustLoad()
}
