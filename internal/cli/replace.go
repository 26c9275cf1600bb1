package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slidesmith/slidesmith/pkg/replace"
)

// replaceCommand creates the replace command for batch text replacement
// across a directory of decks.
func (c *CLI) replaceCommand() *cobra.Command {
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "replace <input-dir> <output-dir>",
		Short: "Batch-replace text across every deck in a directory",
		Long: `Apply a replacement rule set to every .pptx file in a directory. Each
deck is copied into the output directory and rewritten there, so the
originals are never touched. Run formatting is preserved: replaced text
keeps the styling of the first run it spans.

Rules files use one old=new pair per line; lines starting with # are
comments. Inverse pairs (a=b together with b=a) are rejected.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runReplace(args[0], args[1], rulesPath)
		},
	}

	cmd.Flags().StringVarP(&rulesPath, "rules", "r", "replace.properties", "replacement rules file")

	return cmd
}

func (c *CLI) runReplace(inputDir, outputDir, rulesPath string) error {
	rules, err := replace.LoadRules(rulesPath, c.Logger)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		printWarning("No rules loaded from %s, nothing to do", rulesPath)
		return nil
	}
	printInfo("Loaded %s rules from %s", StyleHighlight.Render(fmt.Sprintf("%d", len(rules))), rulesPath)

	spin := newSpinner("Rewriting decks")
	spin.Start()
	res, err := replace.NewRunner(c.Logger).Run(inputDir, outputDir, rules)
	if err != nil {
		spin.StopWithError("Batch failed")
		return err
	}
	spin.StopWithSuccess(fmt.Sprintf("Processed %d decks", res.Processed))

	printDetail("updated:  %d", res.Updated)
	printDetail("skipped:  %d", res.Processed-res.Updated-res.Failed)
	if res.Failed > 0 {
		printWarning("%d deck(s) failed, see log output above", res.Failed)
	}
	printFile(outputDir)
	return nil
}
