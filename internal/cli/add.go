package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slidesmith/slidesmith/pkg/compose"
	"github.com/slidesmith/slidesmith/pkg/deck"
	"github.com/slidesmith/slidesmith/pkg/errors"
)

// addOpts holds the command-line flags for the add command.
type addOpts struct {
	layoutType string
	title      string
	text       string
	text2      string
	image      string
	position   int
	output     string
}

// addCommand creates the add command for inserting one populated slide
// into an existing deck.
func (c *CLI) addCommand() *cobra.Command {
	opts := addOpts{layoutType: string(compose.TypeTitleContent)}

	cmd := &cobra.Command{
		Use:   "add <deck.pptx>",
		Short: "Insert a populated slide into a deck",
		Long: `Insert a new slide into an existing PowerPoint deck. The slide's layout
is resolved against the deck's own layout set from the abstract type,
so the same command works across differently-branded templates.

Examples:
  slidesmith add deck.pptx --title "Q3 Review" --text "Revenue up 12%"
  slidesmith add deck.pptx -t title_two_content --title "Before / After" \
      --text "Old flow" --text2 "New flow"
  slidesmith add deck.pptx -t title_image --title "Team" --image team.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAdd(args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.layoutType, "type", "t", opts.layoutType, "layout type (title_content, title_two_content, title_image_content, title_image)")
	cmd.Flags().StringVar(&opts.title, "title", "", "slide title")
	cmd.Flags().StringVar(&opts.text, "text", "", "content text")
	cmd.Flags().StringVar(&opts.text2, "text2", "", "second content text (two-content layouts)")
	cmd.Flags().StringVarP(&opts.image, "image", "i", "", "image file to place on the slide")
	cmd.Flags().IntVarP(&opts.position, "position", "p", 0, "insertion position (0 = first)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default <deck>_updated.pptx)")

	return cmd
}

func (c *CLI) runAdd(path string, opts addOpts) error {
	track := newProgress(c.Logger)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read deck: %w", err)
	}

	payload := compose.Payload{
		Type:     compose.LayoutType(opts.layoutType),
		Title:    opts.title,
		Body:     opts.text,
		Body2:    opts.text2,
		Position: opts.position,
	}

	if opts.image != "" {
		if err := errors.ValidateImageFilename(filepath.Base(opts.image)); err != nil {
			return err
		}
		img, err := os.ReadFile(opts.image)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		payload.Image = img
		payload.ImageExt = errors.ImageExtension(opts.image)
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	prs, err := deck.Open(data)
	if err != nil {
		return err
	}

	composer := compose.NewComposer(compose.NewMatcher(c.Logger), c.Logger)
	if _, err := composer.Compose(prs, payload); err != nil {
		return err
	}

	out, err := prs.Save()
	if err != nil {
		return err
	}

	dst := opts.output
	if dst == "" {
		dst = updatedPath(path)
	}
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return fmt.Errorf("write deck: %w", err)
	}

	track.done("Slide added")
	printSuccess("Slide inserted at position %s", StyleHighlight.Render(fmt.Sprintf("%d", opts.position)))
	printFile(dst)
	return nil
}

// updatedPath derives the default output path next to the input deck.
func updatedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_updated.pptx"
}
