package main

import (
	"fmt"
	"strconv"

	"kongaddon/internal/prefs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	prefsContext string
	prefsGlobal  bool
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Inspect and edit stored preferences",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one preference",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrefsGet,
}

var prefsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store one preference",
	Long: `Stores a preference. Values that parse as a bool, int or float are stored
in that form, so "true", "-1" and "0.3" round-trip as the add-on writes them.`,
	Args: cobra.ExactArgs(2),
	RunE: runPrefsSet,
}

var prefsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored preference",
	Args:  cobra.NoArgs,
	RunE:  runPrefsList,
}

func openStore() (*prefs.Store, func(), error) {
	backend, closeFn, err := openBackend(cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	ctxName := prefsContext
	if ctxName == "" {
		ctxName = cfg.Context
	}
	return prefs.New(backend, prefs.WithPrefix(cfg.Preferences.Prefix), prefs.WithContext(ctxName)), closeFn, nil
}

func prefsScope() prefs.Scope {
	if prefsGlobal || (prefsContext == "" && cfg.Context == "") {
		return prefs.Global
	}
	return prefs.PerContext
}

func runPrefsGet(cmd *cobra.Command, args []string) error {
	store, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	v := store.GetString(args[0], prefsScope(), "")
	if v == "" {
		return fmt.Errorf("%s is not set", store.Key(args[0], prefsScope()))
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}

// typed keeps the add-on's value types for CLI input.
func typed(s string) any {
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	store, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	scope := prefsScope()
	if err := store.Set(args[0], typed(args[1]), cfg.Preferences.TTLDays, scope); err != nil {
		return err
	}
	logger.Debug("preference stored", zap.String("key", store.Key(args[0], scope)))
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", store.Key(args[0], scope), args[1])
	return nil
}

func runPrefsList(cmd *cobra.Command, args []string) error {
	store, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	entries, err := store.Snapshot()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, e := range entries {
		fmt.Fprintf(out, "%s = %s\n", e.Key, e.Value)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "no preferences stored")
	}
	return nil
}
