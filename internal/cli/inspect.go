package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/slidesmith/slidesmith/pkg/cache"
	"github.com/slidesmith/slidesmith/pkg/compose"
	"github.com/slidesmith/slidesmith/pkg/deck"
)

// inspectionTTL bounds how long a cached reflection is reused. Template
// bytes are the cache key, so this only guards against unbounded growth.
const inspectionTTL = 24 * time.Hour

// inspectCommand creates the inspect command for reflecting a template's
// layouts, placeholders, and layout-type resolution.
func (c *CLI) inspectCommand() *cobra.Command {
	var (
		asJSON  bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <deck.pptx>",
		Short: "Show a template's layouts and how layout types resolve",
		Long: `Inspect a PowerPoint template: list every slide layout with its
placeholders, mark layouts that name matching skips, and preview which
layout each abstract type (title_content, title_two_content, ...) would
resolve to.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read deck: %w", err)
			}

			store := newCache(noCache)
			defer store.Close()

			ref, err := c.reflect(cmd, store, data)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(ref)
			}

			printReflection(args[0], ref)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the reflection as JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the reflection cache")

	return cmd
}

// reflect returns the template reflection, serving it from the cache when
// the exact deck bytes were inspected before.
func (c *CLI) reflect(cmd *cobra.Command, store cache.Cache, data []byte) (compose.Reflection, error) {
	ctx := cmd.Context()
	key := cache.InspectionKey(data)

	if cached, ok, err := store.Get(ctx, key); err == nil && ok {
		var ref compose.Reflection
		if err := json.Unmarshal(cached, &ref); err == nil {
			c.Logger.Debug("Reflection served from cache", "key", key)
			return ref, nil
		}
	}

	prs, err := deck.Open(data)
	if err != nil {
		return compose.Reflection{}, err
	}
	ref := compose.NewMatcher(c.Logger).Inspect(prs)

	if encoded, err := json.Marshal(ref); err == nil {
		if err := store.Set(ctx, key, encoded, inspectionTTL); err != nil {
			c.Logger.Warn("Failed to cache reflection", "error", err)
		}
	}
	return ref, nil
}

// printReflection renders the reflection for humans.
func printReflection(path string, ref compose.Reflection) {
	fmt.Println(StyleTitle.Render(path))
	printKeyValue("Slides", fmt.Sprintf("%d", ref.SlideCount))
	printKeyValue("Layouts", fmt.Sprintf("%d", len(ref.Layouts)))
	printNewline()

	for _, l := range ref.Layouts {
		name := StyleValue.Render(l.Name)
		if l.Excluded {
			name = styleExcluded.Render(l.Name) + StyleDim.Render(" (excluded)")
		}
		fmt.Printf("  %2d  %s\n", l.Index, name)
		for _, ph := range l.Placeholders {
			printDetail("    %-8s %s", ph.Type, ph.Name)
		}
	}

	printNewline()
	fmt.Println(StyleTitle.Render("Resolution"))
	for _, t := range compose.Types() {
		if name, ok := ref.Resolved[t]; ok {
			printKeyValue(string(t), name)
		} else {
			printKeyValue(string(t), StyleDim.Render("unresolved"))
		}
	}
}
