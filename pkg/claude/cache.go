package claude

// BuildCachedSystemBlocks constructs system content blocks with a 1-hour
// cache breakpoint. Analysis tasks share a long system prompt per phase, so
// the first task warms the cache and the rest read from it.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: "1h"},
		},
	}
}
