package main

import (
	"fmt"
	"strings"

	"kongaddon/internal/classify"
	"kongaddon/internal/rewrite"

	"github.com/spf13/cobra"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [text]",
	Short: "Print the linked form of a chat message",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRewrite,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "List the references found in a chat message",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func buildClassifier() (*classify.Classifier, error) {
	return classify.FromConfig(cfg.Classifier, cfg.GetMatchTimeout())
}

func runRewrite(cmd *cobra.Command, args []string) error {
	c, err := buildClassifier()
	if err != nil {
		return err
	}
	w := rewrite.New(c, rewrite.NewLinkRenderer(cfg.Classifier))
	fmt.Fprintln(cmd.OutOrStdout(), w.Rewrite(strings.Join(args, " ")))
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	c, err := buildClassifier()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	matches := c.Classify(strings.Join(args, " "))
	if len(matches) == 0 {
		fmt.Fprintln(out, "no references")
		return nil
	}
	for _, m := range matches {
		fmt.Fprintf(out, "%-8s %3d..%-3d %s\n", m.Kind, m.Span.Start, m.Span.End, m.Payload)
	}
	return nil
}
