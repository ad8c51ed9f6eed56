package creative

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/handlers"
)

const (
	glyphRows     = 5
	maxASCIIChars = 40
)

var (
	blankGlyph   = [glyphRows]string{"     ", "     ", "     ", "     ", "     "}
	unknownGlyph = [glyphRows]string{"#####", "#   #", "#   #", "#   #", "#####"}
)

var glyphs = map[rune][glyphRows]string{
	'A': {"  #  ", " # # ", "#####", "#   #", "#   #"},
	'B': {"#### ", "#   #", "#### ", "#   #", "#### "},
	'C': {" ####", "#    ", "#    ", "#    ", " ####"},
	'D': {"#### ", "#   #", "#   #", "#   #", "#### "},
	'E': {"#####", "#    ", "###  ", "#    ", "#####"},
	'F': {"#####", "#    ", "###  ", "#    ", "#    "},
	'G': {" ####", "#    ", "# ###", "#   #", " ####"},
	'H': {"#   #", "#   #", "#####", "#   #", "#   #"},
	'I': {"#####", "  #  ", "  #  ", "  #  ", "#####"},
	'J': {"#####", "    #", "    #", "#   #", " ### "},
	'K': {"#   #", "#  # ", "###  ", "#  # ", "#   #"},
	'L': {"#    ", "#    ", "#    ", "#    ", "#####"},
	'M': {"#   #", "## ##", "# # #", "#   #", "#   #"},
	'N': {"#   #", "##  #", "# # #", "#  ##", "#   #"},
	'O': {" ### ", "#   #", "#   #", "#   #", " ### "},
	'P': {"#### ", "#   #", "#### ", "#    ", "#    "},
	'Q': {" ### ", "#   #", "# # #", "#  # ", " ## #"},
	'R': {"#### ", "#   #", "#### ", "#  # ", "#   #"},
	'S': {" ####", "#    ", " ### ", "    #", "#### "},
	'T': {"#####", "  #  ", "  #  ", "  #  ", "  #  "},
	'U': {"#   #", "#   #", "#   #", "#   #", " ### "},
	'V': {"#   #", "#   #", "#   #", " # # ", "  #  "},
	'W': {"#   #", "#   #", "# # #", "## ##", "#   #"},
	'X': {"#   #", " # # ", "  #  ", " # # ", "#   #"},
	'Y': {"#   #", " # # ", "  #  ", "  #  ", "  #  "},
	'Z': {"#####", "   # ", "  #  ", " #   ", "#####"},
	'0': {" ### ", "#  ##", "# # #", "##  #", " ### "},
	'1': {"  #  ", " ##  ", "  #  ", "  #  ", " ### "},
	'2': {" ### ", "#   #", "  ## ", " #   ", "#####"},
	'3': {"#### ", "    #", " ### ", "    #", "#### "},
	'4': {"#   #", "#   #", "#####", "    #", "    #"},
	'5': {"#####", "#    ", "#### ", "    #", "#### "},
	'6': {" ### ", "#    ", "#### ", "#   #", " ### "},
	'7': {"#####", "    #", "   # ", "  #  ", "  #  "},
	'8': {" ### ", "#   #", " ### ", "#   #", " ### "},
	'9': {" ### ", "#   #", " ####", "    #", " ### "},
}

// RenderASCII draws text as five rows of block letters separated by one
// column. Characters without a glyph are drawn as a box.
func RenderASCII(text string) []string {
	text = strings.ToUpper(text)
	rows := make([]string, glyphRows)
	first := true
	for _, r := range text {
		glyph, ok := glyphs[r]
		switch {
		case ok:
		case r == ' ':
			glyph = blankGlyph
		default:
			glyph = unknownGlyph
		}
		for i := range rows {
			if !first {
				rows[i] += " "
			}
			rows[i] += glyph[i]
		}
		first = false
	}
	return rows
}

// NewASCIIArtHandler creates the create_ascii_art tool
func NewASCIIArtHandler(logger *logging.Logger) handlers.ToolHandler {
	tool := mcp.NewTool("create_ascii_art",
		mcp.WithDescription("Render text as ASCII block letters"),
		mcp.WithString("text", mcp.Required(), mcp.Description(fmt.Sprintf("Text to render (at most %d characters)", maxASCIIChars))),
	)
	return handlers.NewHandlerFunc(tool, logger, func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		if strings.TrimSpace(text) == "" {
			return mcp.NewToolResultText("No valid characters to convert"), nil
		}
		if utf8.RuneCountInString(text) > maxASCIIChars {
			return mcp.NewToolResultError(fmt.Sprintf("text is longer than %d characters", maxASCIIChars)), nil
		}
		return mcp.NewToolResultText("ASCII Art:\n" + strings.Join(RenderASCII(text), "\n")), nil
	})
}
