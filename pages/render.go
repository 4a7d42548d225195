package pages

import (
	"context"
	"fmt"
	"strings"

	"github.com/otakulist/otakulist/controller"
)

func runResource[T any](ctx context.Context, r *controller.Resource[T], force bool) {
	if force {
		r.Refresh(ctx)
		return
	}
	r.Load(ctx)
}

// writeStatus notes cached or failed sections; a fresh section gets no line
func writeStatus(b *strings.Builder, section string, state controller.State, err error) {
	switch state {
	case controller.LoadedFromCache:
		if err != nil {
			b.WriteString(fmt.Sprintf("_%s: showing cached copy, refresh failed: %v_\n", section, err))
			return
		}
		b.WriteString(fmt.Sprintf("_%s: cached_\n", section))
	case controller.Error:
		b.WriteString(fmt.Sprintf("**%s unavailable: %v** (retry with --refresh)\n", section, err))
	}
}
