package quality

// Category groups related violation codes for per-category capping and
// for routing a scanner's output to the right section of a report.
type Category string

const (
	CategoryJWT     Category = "jwt"
	CategoryCORS    Category = "cors"
	CategorySecrets Category = "secrets"
	CategoryLogging Category = "logging"
	CategoryTracing Category = "tracing"
	CategoryHealth  Category = "health"
	CategoryDocker  Category = "docker"
)

// CatalogEntry documents one Layer 3 violation code.
type CatalogEntry struct {
	Code     string
	Category Category
	Message  string
}

// Catalog lists every code a Layer 3 scanner may emit, grouped by
// category. It mirrors the shape of log-sanitizer and image-pinning
// checks that operate over a service's own stack, generalized here to
// scan a builder's generated service tree instead of a single process's
// own containers.
var Catalog = []CatalogEntry{
	{"JWT001", CategoryJWT, "JWT secret is hardcoded"},
	{"JWT002", CategoryJWT, "JWT secret loaded from a weak default"},
	{"JWT003", CategoryJWT, "JWT verification missing expiry check"},
	{"JWT004", CategoryJWT, "JWT algorithm not pinned (alg: none accepted)"},
	{"JWT005", CategoryJWT, "JWT signing key shorter than 256 bits"},

	{"CORS001", CategoryCORS, "CORS allows wildcard origin with credentials"},
	{"CORS002", CategoryCORS, "CORS allows wildcard origin"},
	{"CORS003", CategoryCORS, "CORS missing for a cross-origin-consuming endpoint"},
	{"CORS004", CategoryCORS, "CORS allows all methods"},

	{"SEC001", CategorySecrets, "API key committed in source"},
	{"SEC002", CategorySecrets, "Database connection string with inline credentials"},
	{"SEC003", CategorySecrets, "Private key committed in source"},
	{"SEC004", CategorySecrets, "Secret referenced from an unencrypted env file"},
	{"SEC005", CategorySecrets, "AWS credentials embedded in source"},
	{"SEC006", CategorySecrets, "Generic high-entropy string flagged as a likely secret"},

	{"LOG001", CategoryLogging, "Password logged in plaintext"},
	{"LOG002", CategoryLogging, "Authorization header logged in plaintext"},
	{"LOG003", CategoryLogging, "PII logged without redaction"},
	{"LOG004", CategoryLogging, "No structured logging library in use"},
	{"LOG005", CategoryLogging, "Log level not configurable"},

	{"TRACE001", CategoryTracing, "Missing trace context propagation on outbound call"},
	{"TRACE002", CategoryTracing, "Missing request id on inbound middleware"},
	{"TRACE003", CategoryTracing, "Span not closed on error path"},
	{"TRACE004", CategoryTracing, "No correlation id threaded through async handlers"},

	{"HEALTH001", CategoryHealth, "No health endpoint defined"},
	{"HEALTH002", CategoryHealth, "Health endpoint does not check downstream dependencies"},
	{"HEALTH003", CategoryHealth, "Health endpoint returns 200 even when DB is unreachable"},
	{"HEALTH004", CategoryHealth, "Readiness and liveness not distinguished"},

	{"DOCKER001", CategoryDocker, "Base image not pinned to a digest or version tag"},
	{"DOCKER002", CategoryDocker, "Container runs as root"},
	{"DOCKER003", CategoryDocker, "Dockerfile installs unused build tools in the final stage"},
	{"DOCKER004", CategoryDocker, "No multi-stage build (bloated final image)"},
	{"DOCKER005", CategoryDocker, "Secrets passed via build args"},
	{"DOCKER006", CategoryDocker, "Exposed port does not match the service's configured port"},
	{"DOCKER007", CategoryDocker, "No .dockerignore present"},
	{"DOCKER008", CategoryDocker, "Latest tag used for a dependency image"},
}

// CodesFor returns the code list for one category, for scanners that
// only emit a subset of the catalog.
func CodesFor(cat Category) []string {
	var codes []string
	for _, e := range Catalog {
		if e.Category == cat {
			codes = append(codes, e.Code)
		}
	}
	return codes
}
