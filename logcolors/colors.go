package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"

	BrightGreen   = "\033[92m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"
)

// Cache-related log prefixes
const (
	LogCacheInit     = Blue + "[Cache:Init]" + Reset
	LogCache         = Blue + "[Cache]" + Reset
	LogCacheClear    = Blue + "[Cache:Clear]" + Reset
	LogCachePurge    = Blue + "[Cache:Purge]" + Reset
	LogCacheLyrics   = Green + "[Cache:Lyrics]" + Reset
	LogCacheNegative = Cyan + "[Cache:Negative]" + Reset
)

// Rate limiting and auth log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAdmin     = Purple + "[Admin]" + Reset
)

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset

	LogNotifier = Yellow + "[Notifier]" + Reset
)

// Pipeline log prefixes
const (
	LogIdentify       = BrightMagenta + "[Identify]" + Reset
	LogLyrics         = Blue + "[Lyrics]" + Reset
	LogLRC            = Cyan + "[LRC]" + Reset
	LogHTTP           = Cyan + "[HTTP]" + Reset
	LogMatch          = Green + "[Match]" + Reset
	LogNoMatch        = Yellow + "[No Match]" + Reset
	LogFallback       = Cyan + "[Fallback]" + Reset
	LogCircuitBreaker = Purple + "[CircuitBreaker]" + Reset
	LogWarning        = Red + "[Warning]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// providerColors rotate per provider name so each provider keeps one color
var providerColors = []string{
	Green, Blue, Purple, Cyan,
	BrightGreen, BrightBlue, BrightMagenta, BrightCyan,
}

// Provider returns a colored "[Provider:name]" prefix.
// Same provider name always gets the same color
func Provider(name string) string {
	hash := 0
	for _, c := range name {
		hash += int(c)
	}
	color := providerColors[hash%len(providerColors)]
	return color + "[Provider:" + name + "]" + Reset
}
