package convexgen

// Language names.
const (
	LangGo = "go"
)

// Project layout defaults.
const (
	DefaultFunctionsDir = "convex"
	DefaultSchemaFile   = "schema.ts"
	DefaultStorePath    = ".convexgen/dev.db"
	DefaultGeneratedDir = "_generated"
	DefaultFixturesDir  = "fixtures"
)

// Output formats of the fixture runner.
const (
	FormatDots    = "dots"
	FormatVerbose = "verbose"
	FormatPretty  = "pretty"
	FormatJSON    = "json"
	FormatTUI     = "tui"
)

// Log formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// ModuleExtensions are the file extensions of function modules.
var ModuleExtensions = []string{"ts", "js"}
