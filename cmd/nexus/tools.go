package main

import (
	"context"
	"fmt"

	"github.com/Rick1330/Nexus-Framework/internal/memory"
	"github.com/Rick1330/Nexus-Framework/internal/tools"
)

// registerBuiltinTools exposes the shared memory store to agents as the
// "memory" tool with search and store actions.
func registerBuiltinTools(reg *tools.Registry, mem *memory.Store) {
	reg.Register(tools.Tool{
		ID:          "memory",
		Name:        "Context memory",
		Description: "Search and store context shared between tasks",
		Category:    "context",
		Actions:     []string{"search", "store"},
	}, func(ctx context.Context, action string, params map[string]any) (map[string]any, error) {
		tier := memory.Tier(stringParam(params, "tier"))
		if tier != "" && !tier.Valid() {
			return nil, fmt.Errorf("unknown memory tier %q", tier)
		}

		switch action {
		case "search":
			limit := 5
			if n, ok := params["limit"].(int); ok && n > 0 {
				limit = n
			}
			entries := mem.Search(stringParam(params, "query"), tier, limit)
			results := make([]string, len(entries))
			for i, e := range entries {
				results[i] = e.String()
			}
			return map[string]any{"results": results}, nil
		case "store":
			content := stringParam(params, "content")
			if content == "" {
				return nil, fmt.Errorf("store needs content")
			}
			if tier == "" {
				tier = memory.TierWorking
			}
			id := mem.Put(content, tier, nil)
			return map[string]any{"id": id}, nil
		default:
			return nil, fmt.Errorf("unknown memory action %q", action)
		}
	})
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}
