package pattern

// BuiltinVersion marks patterns shipped with the binary. Pattern files with
// any other version replace them on Register.
const BuiltinVersion = "builtin"

// Builtin returns freshly compiled copies of the shipped locale patterns.
//
// Headings are anchored at line start so in-body citations such as
// "as referred to in Article 114 thereof" do not open a new block. The
// fallbacks serve linearized text where headings run on after the previous
// sentence: they accept the heading word after a line break or a sentence
// end, followed by a number and a capitalized title word.
func Builtin() []*LocalePattern {
	return []*LocalePattern{
		MustCompile(&LocalePattern{
			Lang:            "en",
			Name:            "English (EUR-Lex)",
			Version:         BuiltinVersion,
			ArticleHeading:  `(?im)^\s*article\s+(\d+)\b[^\n]*$`,
			ArticleFallback: `(?:^|\n|[.;:]\s)\s*(?i:article)\s+(\d+)\s+\p{Lu}`,
			HeadingWords:    []string{"Article", "Art"},
		}),
		MustCompile(&LocalePattern{
			Lang:            "de",
			Name:            "Deutsch (EUR-Lex)",
			Version:         BuiltinVersion,
			ArticleHeading:  `(?im)^\s*artikel\s+(\d+)\b[^\n]*$`,
			ArticleFallback: `(?:^|\n|[.;:]\s)\s*(?i:artikel)\s+(\d+)\s+\p{Lu}`,
			HeadingWords:    []string{"Artikel", "Art"},
		}),
		MustCompile(&LocalePattern{
			Lang:            "fr",
			Name:            "Français (EUR-Lex)",
			Version:         BuiltinVersion,
			ArticleHeading:  `(?im)^\s*article\s+(\d+)\b[^\n]*$`,
			ArticleFallback: `(?:^|\n|[.;:]\s)\s*(?i:article)\s+(\d+)\s+\p{Lu}`,
			HeadingWords:    []string{"Article", "Art"},
		}),
	}
}
