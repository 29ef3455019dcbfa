package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/origindb/origindb/internal/engine"
)

var namesCmd = &cobra.Command{
	Use:   "names <origin>",
	Short: "List the databases stored for an origin",
	Long: `Opens the origin's backing store and prints the name of every database
it holds, one per line. The store is released through the normal grace
period afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runNames,
}

func init() {
	rootCmd.AddCommand(namesCmd)
}

// namesSink prints the reported names, or the failure, to the terminal.
type namesSink struct {
	err error
}

func (s *namesSink) OnSuccess(value any) {
	names, ok := value.([]string)
	if !ok {
		s.err = fmt.Errorf("unexpected result type %T", value)
		return
	}
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "no databases")
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func (s *namesSink) OnError(kind engine.ErrorKind, message string) {
	s.err = fmt.Errorf("%s: %s", kind, message)
}

func runNames(cmd *cobra.Command, args []string) error {
	origin := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	factory, err := engine.NewFactory(engine.Options{
		Driver:        cfg.Storage.Driver,
		DriverOptions: cfg.BackingStoreOptions(),
		GracePeriod:   cfg.Storage.GracePeriod(),
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer factory.ContextDestroyed()

	sink := &namesSink{}
	factory.GetDatabaseNames(sink, origin, cfg.Storage.Path)
	return sink.err
}
