package widget

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For any post-it widget and any combination of present/absent update
// fields, a merge keeps every absent field at its prior value, applies every
// present field, and never changes the content variant.
func TestPartialMergeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("absent fields survive, present fields overwrite", prop.ForAll(
		func(x, y, newX float64, text, newText string, fontSize float64, setX, setText bool) bool {
			s := NewStore(newTestLogger())
			s.Create("w1", Widget{
				WidgetID: "p",
				Type:     TypePostIt,
				Data: Data{
					X: x, Y: y,
					Content: PostItContent{Text: text, BackgroundColor: "#FFF", FontSize: fontSize},
				},
			})

			partial := PartialData{}
			if setX {
				partial.X = &newX
			}
			if setText {
				partial.Content = &PartialContent{Text: &newText}
			}

			got, err := s.Update("w1", "p", partial)
			if err != nil {
				return false
			}
			content, ok := got.Data.Content.(PostItContent)
			if !ok {
				return false // variant tag must never change
			}

			wantX := x
			if setX {
				wantX = newX
			}
			wantText := text
			if setText {
				wantText = newText
			}
			return got.Data.X == wantX &&
				got.Data.Y == y &&
				content.Text == wantText &&
				content.BackgroundColor == "#FFF" &&
				content.FontSize == fontSize
		},
		gen.Float64Range(-1000, 1000),
		gen.Float64Range(-1000, 1000),
		gen.Float64Range(-1000, 1000),
		gen.AnyString(),
		gen.AnyString(),
		gen.Float64Range(8, 64),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
