package cli

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rshade/kvcache/internal/config"
	"github.com/rshade/kvcache/internal/logging"
	"github.com/rshade/kvcache/pkg/kvcache"
)

// Output formats for commands that print entries or reports.
const (
	outputText = "text"
	outputJSON = "json"
)

// parseKey returns raw as a string key, or decodes it as JSON when jsonKey is set.
func parseKey(raw string, jsonKey bool) (any, error) {
	if !jsonKey {
		return raw, nil
	}
	var key any
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return nil, fmt.Errorf("key is not valid JSON: %w", err)
	}
	return key, nil
}

// parseValue returns raw as a string value, or decodes it as JSON when jsonValue is set.
func parseValue(raw string, jsonValue bool) (any, error) {
	if !jsonValue {
		return raw, nil
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("value is not valid JSON: %w", err)
	}
	return value, nil
}

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", format, outputText, outputJSON)
	}
}

func newSetCmd(a *app) *cobra.Command {
	var (
		ttlFlag   string
		jsonValue bool
		jsonKey   bool
	)

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value",
		Long: `Stores a value under a key in memory and on disk.

Without --ttl the configured default_ttl applies; a TTL of 0 stores the
entry without expiry. TTLs accept seconds ("3600"), Go durations ("90m")
and a day prefix ("2d12h").`,
		Example: `  kvcache set greeting hello
  kvcache set session:42 alice --ttl 15m
  kvcache set --json limits '{"rps":50,"burst":100}'`,
		Args: cobra.ExactArgs(2), //nolint:mnd // key and value
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0], jsonKey)
			if err != nil {
				return err
			}
			value, err := parseValue(args[1], jsonValue)
			if err != nil {
				return err
			}

			ttl := time.Duration(a.cfg.DefaultTTL)
			if cmd.Flags().Changed("ttl") {
				if ttl, err = config.ParseTTL(ttlFlag); err != nil {
					return fmt.Errorf("invalid --ttl: %w", err)
				}
			}

			c, err := a.openCache(cmd)
			if err != nil {
				return err
			}

			if ttl > 0 {
				err = c.SetWithTTL(key, value, ttl)
			} else {
				err = c.Set(key, value)
			}
			if err != nil {
				return fmt.Errorf("storing %s: %w", args[0], err)
			}

			log := logging.FromContext(cmd.Context())
			log.Debug().
				Str("key", args[0]).Dur("ttl", ttl).Msg("entry stored")
			return nil
		},
	}

	cmd.Flags().StringVar(&ttlFlag, "ttl", "", "time to live, e.g. 30s, 15m, 2d (0 for no expiry)")
	cmd.Flags().BoolVar(&jsonValue, "json", false, "decode the value as JSON")
	cmd.Flags().BoolVar(&jsonKey, "json-key", false, "decode the key as JSON")

	return cmd
}

// entryView is the JSON shape printed by get --output json.
type entryView struct {
	Key       string     `json:"key"`
	Type      string     `json:"type"`
	Value     any        `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	TTL       string     `json:"ttl,omitempty"`
}

func newGetCmd(a *app) *cobra.Command {
	var (
		jsonKey bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a stored value",
		Long: `Prints the live value stored under a key. Strings are printed as-is and
other values as JSON. A missing or expired key exits with status 3.`,
		Example: `  kvcache get greeting
  kvcache get --output json session:42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			key, err := parseKey(args[0], jsonKey)
			if err != nil {
				return err
			}

			c, err := a.openCache(cmd)
			if err != nil {
				return err
			}

			e, found, err := c.GetEntry(key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			if !found {
				a.miss(fmt.Sprintf("key %q not found", args[0]))
				return nil
			}

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), newEntryView(args[0], e, time.Now()))
			}
			return writeValue(cmd, e.Value)
		},
	}

	cmd.Flags().BoolVar(&jsonKey, "json-key", false, "decode the key as JSON")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text or json")

	return cmd
}

func newEntryView(key string, e kvcache.Entry, now time.Time) entryView {
	v := entryView{Key: key, Type: e.TypeTag, Value: e.Value}
	if e.HasExpiry() {
		expiresAt := e.ExpiresAt.UTC()
		v.ExpiresAt = &expiresAt
		v.TTL = config.FormatDuration(e.TimeUntilExpiration(now).Truncate(time.Second))
	}
	return v
}

func writeValue(cmd *cobra.Command, value any) error {
	out := cmd.OutOrStdout()
	if s, ok := value.(string); ok {
		_, err := fmt.Fprintln(out, s)
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func newExistsCmd(a *app) *cobra.Command {
	var jsonKey bool

	cmd := &cobra.Command{
		Use:   "exists <key>",
		Short: "Check whether a key has a live entry",
		Long:  `Prints true or false. A missing or expired key exits with status 3.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0], jsonKey)
			if err != nil {
				return err
			}

			c, err := a.openCache(cmd)
			if err != nil {
				return err
			}

			ok, err := c.Exists(key)
			if err != nil {
				return fmt.Errorf("checking %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			if !ok {
				a.miss("")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonKey, "json-key", false, "decode the key as JSON")

	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var jsonKey bool

	cmd := &cobra.Command{
		Use:     "remove <key>...",
		Aliases: []string{"rm"},
		Short:   "Delete entries",
		Long:    `Deletes keys from memory and disk. Removing a missing key is not an error.`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCache(cmd)
			if err != nil {
				return err
			}

			for _, raw := range args {
				key, keyErr := parseKey(raw, jsonKey)
				if keyErr != nil {
					return keyErr
				}
				if err = c.Remove(key); err != nil {
					return fmt.Errorf("removing %s: %w", raw, err)
				}
			}

			cmd.Printf("Removed %d key(s)\n", len(args))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonKey, "json-key", false, "decode keys as JSON")

	return cmd
}
