package builtin

import (
	"github.com/log2timeline/plaso-sub000/internal/parsers"
	"github.com/log2timeline/plaso-sub000/pkg/signature"
)

// FallbackParserName is the parser invoked when signature scanning
// yields no candidates (spec.md §4.4).
const FallbackParserName = "filestat"

// RegisterAll wires every built-in parser into registry and its
// signature rules into scanner, keeping the two tables in lock-step.
func RegisterAll(registry *parsers.Registry, scanner *signature.Scanner) error {
	for _, p := range []parsers.Parser{
		FileStatParser{},
		LNKParser{},
		SyslogParser{},
		WinRegParser{},
	} {
		if err := registry.Register(p); err != nil {
			return err
		}
	}

	for _, rule := range LNKSignatureRules {
		rule.ParserName = "lnk"
		scanner.Register(rule)
	}
	scanner.Register(signature.Rule{
		ParserName: "winreg",
		Pattern:    WinRegMagic,
		Offset:     0,
		Kind:       signature.OffsetAbsolute,
	})

	return nil
}

// Presets returns the named parser-filter presets spec.md §8 S5
// exercises ("win7,!winreg"). A full build derives these from each
// parser's declared platform affinity; this minimal set covers the
// built-in parsers above.
func Presets() parsers.Presets {
	return parsers.Presets{
		"win7":  {"lnk", "winreg", "filestat"},
		"macos": {"filestat"},
		"linux": {"syslog", "filestat"},
	}
}
