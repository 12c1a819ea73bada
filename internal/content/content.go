// Package content holds the practice texts, tips and page templates served
// alongside generated prompts.
package content

import "hit/internal/model"

// FallbackSentence is served whenever a fresh prompt cannot be generated.
const FallbackSentence = "Handwriting is a timeless skill that connects the mind and the body in perfect harmony."

type PageTemplate struct {
	Format       model.PageFormat `json:"format"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Rows         int              `json:"rows"`
	GuidesPerRow int              `json:"guidesPerRow"`
}

type Catalog struct {
	FallbackSentence string         `json:"fallbackSentence"`
	SentencePrompts  []string       `json:"sentencePrompts"`
	ParagraphPrompts []string       `json:"paragraphPrompts"`
	Tips             []model.Tip    `json:"tips"`
	PageTemplates    []PageTemplate `json:"pageTemplates"`
	UsageTip         string         `json:"usageTip"`
}

var Base = Catalog{
	FallbackSentence: FallbackSentence,
	SentencePrompts: []string{
		"Pack my box with five dozen liquor jugs.",
		"The quick brown fox jumps over the lazy dog.",
		"Always close the tops of your letters 'a' and 'o'.",
		"Quality and precision require patience and practice.",
		"A slight slant of five to fifteen degrees is ideal.",
		"Tall ascenders like 'd' and 'l' should be distinct.",
		"Keep your descenders like 'p' and 'q' tidy and long.",
		"Consistency across the baseline creates harmony.",
	},
	ParagraphPrompts: []string{
		"Handwriting is an intimate expression of your personality and discipline. It is a craft that requires a steady hand and a calm mind to execute effectively. As you begin each word, focus on the deliberate connection between each letter, ensuring that the tops of your 'a' and 'o' are fully closed to avoid any confusion with 'u' or 'v'. Consistency across the baseline is the foundation of a readable script. By maintaining a uniform height for your letters and an even slant throughout the page, you create a visual harmony that is both pleasing and professional.",
		"The beauty of cursive writing lies in its continuous flow, which mirrors the fluidity of human thought. To achieve a high standard of penmanship, one must pay close attention to the small details that often go overlooked. Ensure that your ascenders reach upward with grace, while your descenders remain tidy and well-defined below the line. This separation prevents the unsightly tangling of characters between lines of text. A subtle slant of approximately ten degrees will lend your writing a sophisticated air of elegance. Remember that your pen is a tool for art as much as for communication.",
		"Developing a refined handwriting style is a journey that rewards those who practice with intention and regularity. It is not merely about speed, but about the quality of every individual stroke you make. When transitioning from block letters to cursive, maintain the same level of care for letter spacing and character sizing. If you find your writing becoming messy during faster dictation, slow down and revisit the basics of letter formation. Each session is an opportunity to improve your focus and fine-tune the mechanical movements of your hand. Persistence will eventually lead to effortless mastery of the script.",
	},
	Tips: []model.Tip{
		{Title: "Clear Letters", Desc: "Close the tops of 'a' and 'o'. Ensure 'd', 'l', 'p', and 'q' have distinct lengths.", Icon: "🖋️"},
		{Title: "Consistency", Desc: "Maintain a steady baseline and keep similar letters the same size.", Icon: "📏"},
		{Title: "Avoid Tangles", Desc: "Give your ascenders and descenders enough breathing room between lines.", Icon: "✂️"},
		{Title: "Tidy Connections", Desc: "Use straight connectors in cursive; avoid connecting letters when printing.", Icon: "🔗"},
		{Title: "Perfect Slant", Desc: "Aim for a subtle 5-15 degree slant. Tilt your paper to help consistency.", Icon: "📐"},
	},
	PageTemplates: []PageTemplate{
		{
			Format:       model.PageFourRule,
			Name:         "Four-rule",
			Description:  "Ascender, waist, base and descender lines for letter height drills.",
			Rows:         14,
			GuidesPerRow: 4,
		},
		{
			Format:       model.PageLined,
			Name:         "Lined",
			Description:  "Single baseline per row for sentence and paragraph practice.",
			Rows:         18,
			GuidesPerRow: 1,
		},
		{
			Format:      model.PageUnruled,
			Name:        "Unruled",
			Description: "Blank page for checking baseline control without guides.",
		},
	},
	UsageTip: "Lay your physical notebook over this template if practicing on translucent paper, or use it as a visual reference for line heights.",
}
