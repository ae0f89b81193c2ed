package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/docsmith-io/docsmith/internal/log"
	"github.com/docsmith-io/docsmith/internal/model"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var (
	userConfigPath string // /default/config/path/docsmith on given OS
	configPath     string // actual config file used (if loaded)
	config         *model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "docsmith")
}

func main() {
	// local overrides for worker credentials and endpoints
	_ = godotenv.Load()

	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is docsmith.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initDocsmith

	generateCmd.Flags().StringVar(&flagTemplate, "template", "", "markdown template file (required)")
	generateCmd.Flags().StringArrayVar(&flagSections, "section", nil, "section name to generate, repeatable (required)")
	generateCmd.Flags().StringVar(&flagCollection, "collection", "", "source document collection")
	generateCmd.Flags().StringVar(&flagInstructions, "instructions", "", "file with additional instructions for the worker")
	generateCmd.Flags().IntVar(&flagTopK, "top-k", 0, "number of retrieved passages")
	generateCmd.Flags().StringVar(&flagStyle, "style", "", "writing style hint")
	generateCmd.Flags().StringVar(&flagOutput, "output", "", "output file, or directory when several sections are given, stdout when empty")
	generateCmd.Flags().IntVar(&flagParallel, "parallel", 2, "concurrent workers when generating several sections")
	_ = generateCmd.MarkFlagRequired("template")
	_ = generateCmd.MarkFlagRequired("section")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("docsmith failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "docsmith",
	Short:        "Runs document generation workers and streams their progress",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve starts the HTTP API accepting generation jobs",
	RunE:  doServe,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "generate runs a single job in the foreground",
	RunE:  doGenerate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides version of a docsmith",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("docsmith: version info not available")
		}

		if configPath != "" {
			fmt.Printf("config:   %s\n", configPath)
		}
		fmt.Printf("docsmith: %s\n", info.Main.Version)
		fmt.Printf("go:       %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:   %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:     %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:    %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func initDocsmith(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("DOCSMITHCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, "docsmith.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		def := model.DefaultConfig(context.Background())
		config = &def
		configPath = filepath.Join(userConfigPath, "docsmith.yaml")
		err := os.MkdirAll(filepath.Dir(configPath), 0755)
		if err != nil {
			return fmt.Errorf("creating directory %s: %w", filepath.Dir(configPath), err)
		}

		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("creating file %s: %w", configPath, err)
		}
		defer func() {
			_ = f.Close()
		}()
		enc := yaml.NewEncoder(f)
		err = enc.Encode(config)
		if err != nil {
			return fmt.Errorf("storing configuration: %w", err)
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error(d)
			}
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	// DOCSMITH_* environment variables override the worker subtree
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	_ = viper.ReadInConfig()
	viper.SetEnvPrefix("DOCSMITH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// --verbose has a precedence over config file
	if flagVerbose {
		config.Service.Verbose = true
	}

	slog.SetDefault(log.New(config.Service.Verbose))

	slog.Debug("docsmith run", "configPath", configPath)
	slog.Debug("docsmith run", "config", config)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
