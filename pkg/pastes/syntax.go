package pastes

import "strings"

// DefaultSyntax is used for unknown or missing highlighting languages
const DefaultSyntax = "plaintext"

// syntaxes are the highlighter language names a paste may declare
var syntaxes = map[string]struct{}{
	"abap": {}, "actionscript-3": {}, "ada": {}, "apache": {}, "apex": {}, "apl": {},
	"applescript": {}, "ara": {}, "asm": {}, "astro": {}, "awk": {}, "ballerina": {},
	"bash": {}, "bat": {}, "batch": {}, "be": {}, "berry": {}, "bibtex": {}, "bicep": {},
	"blade": {}, "c": {}, "c#": {}, "cadence": {}, "cdc": {}, "clarity": {}, "clj": {},
	"clojure": {}, "cmake": {}, "cmd": {}, "cobol": {}, "codeql": {}, "coffee": {},
	"console": {}, "cpp": {}, "crystal": {}, "cs": {}, "csharp": {}, "css": {}, "cue": {},
	"d": {}, "dart": {}, "dax": {}, "diff": {}, "docker": {}, "dream-maker": {},
	"elixir": {}, "elm": {}, "erb": {}, "erl": {}, "erlang": {}, "f#": {}, "fish": {},
	"fs": {}, "fsharp": {}, "fsl": {}, "gherkin": {}, "git-commit": {}, "git-rebase": {},
	"glsl": {}, "gnuplot": {}, "go": {}, "graphql": {}, "groovy": {}, "hack": {},
	"haml": {}, "handlebars": {}, "haskell": {}, "hbs": {}, "hcl": {}, "hlsl": {}, "hs": {},
	"html": {}, "http": {}, "imba": {}, "ini": {}, "jade": {}, "java": {}, "javascript": {},
	"jinja-html": {}, "jison": {}, "js": {}, "json": {}, "json5": {}, "jsonc": {},
	"jsonnet": {}, "jssm": {}, "jsx": {}, "julia": {}, "kotlin": {}, "latex": {},
	"less": {}, "liquid": {}, "lisp": {}, "logo": {}, "lua": {}, "make": {}, "makefile": {},
	"markdown": {}, "marko": {}, "matlab": {}, "md": {}, "mdx": {}, "mermaid": {},
	"nginx": {}, "nim": {}, "nix": {}, "objc": {}, "objective-c": {}, "objective-cpp": {},
	"ocaml": {}, "pascal": {}, "perl": {}, "perl6": {}, "php": {}, "plsql": {},
	"postcss": {}, "powerquery": {}, "powershell": {}, "prisma": {}, "prolog": {},
	"properties": {}, "proto": {}, "ps": {}, "ps1": {}, "pug": {}, "puppet": {},
	"purescript": {}, "py": {}, "python": {}, "ql": {}, "r": {}, "raku": {}, "razor": {},
	"rb": {}, "rel": {}, "riscv": {}, "rs": {}, "rst": {}, "ruby": {}, "rust": {},
	"sas": {}, "sass": {}, "scala": {}, "scheme": {}, "scss": {}, "sh": {}, "shader": {},
	"shaderlab": {}, "shell": {}, "shellscript": {}, "smalltalk": {}, "solidity": {},
	"sparql": {}, "sql": {}, "ssh-config": {}, "stata": {}, "styl": {}, "stylus": {},
	"svelte": {}, "swift": {}, "system-verilog": {}, "tasl": {}, "tcl": {}, "tex": {},
	"toml": {}, "ts": {}, "tsx": {}, "turtle": {}, "twig": {}, "typescript": {}, "v": {},
	"vb": {}, "verilog": {}, "vhdl": {}, "vim": {}, "viml": {}, "vimscript": {}, "vue": {},
	"vue-html": {}, "wasm": {}, "wenyan": {}, "wgsl": {}, "xml": {}, "xsl": {}, "yaml": {},
	"yml": {}, "zenscript": {}, "zsh": {}, "文言": {},
}

// NormalizeSyntax returns s when it names a supported highlighter language
// and DefaultSyntax otherwise. Matching is exact after trimming spaces.
func NormalizeSyntax(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := syntaxes[s]; ok {
		return s
	}
	return DefaultSyntax
}

// ValidSyntax reports whether s names a supported highlighter language
func ValidSyntax(s string) bool {
	_, ok := syntaxes[s]
	return ok
}
