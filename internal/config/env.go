package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// ─────────────────────────────────────────────────────────────────────────────
// Environment Variable Utilities
// ─────────────────────────────────────────────────────────────────────────────

// getEnvString returns the value of EnvPrefix+key, or defaultVal if unset.
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvUint64 returns EnvPrefix+key parsed as uint64, or defaultVal if unset
// or invalid.
func getEnvUint64(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvInt returns EnvPrefix+key parsed as int, or defaultVal if unset or
// invalid.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvFloat returns EnvPrefix+key parsed as float64, or defaultVal if unset
// or invalid.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvIntList returns EnvPrefix+key parsed as a comma-separated list of
// ints. Any malformed element keeps defaultVal.
func getEnvIntList(key string, defaultVal []int) []int {
	val := os.Getenv(EnvPrefix + key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		parsed, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return defaultVal
		}
		out = append(out, parsed)
	}
	return out
}

// getEnvBool returns EnvPrefix+key parsed as bool, or defaultVal if unset.
// Accepts "true", "1", "yes" as true; "false", "0", "no" as false (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}

// getEnvDuration returns EnvPrefix+key parsed as time.Duration ("5m", "30s"),
// or defaultVal if unset or invalid.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// isFlagSet reports whether name was set on the command line. A nil flag
// set or an unknown flag counts as unset.
func isFlagSet(fs *pflag.FlagSet, name string) bool {
	if fs == nil || fs.Lookup(name) == nil {
		return false
	}
	return fs.Changed(name)
}

// envKey maps a flag name to its environment key: "lhs-pairing" becomes
// "LHS_PAIRING".
func envKey(flagName string) string {
	return strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// applyEnvOverrides applies environment variable values to every flag that
// was not explicitly set on the command line, giving the priority
// CLI flags > environment variables > defaults.
//
// Each flag maps to MANDELAREA_<FLAG_NAME> with dashes as underscores, for
// example MANDELAREA_SAMPLES, MANDELAREA_LHS_PAIRING, MANDELAREA_S3_BUCKET
// or MANDELAREA_SWEEP_SIDES ("80,100,120").
func applyEnvOverrides(config *AppConfig, fs *pflag.FlagSet) {
	applyNumericOverrides(config, fs)
	applyDurationOverrides(config, fs)
	applyStringOverrides(config, fs)
	applyBooleanOverrides(config, fs)
}

func applyNumericOverrides(config *AppConfig, fs *pflag.FlagSet) {
	floats := map[string]*float64{
		"re-min": &config.RealMin,
		"re-max": &config.RealMax,
		"im-min": &config.ImagMin,
		"im-max": &config.ImagMax,
	}
	for name, ptr := range floats {
		if !isFlagSet(fs, name) {
			*ptr = getEnvFloat(envKey(name), *ptr)
		}
	}

	ints := map[string]*int{
		"samples":         &config.Samples,
		"grid":            &config.Grid,
		"iter":            &config.MaxIter,
		"workers":         &config.Workers,
		"true-grid":       &config.TrueAreaGrid,
		"true-iter":       &config.TrueAreaIter,
		"repeats":         &config.Repeats,
		"repeat-side":     &config.RepeatSide,
		"repeat-iter":     &config.RepeatIter,
		"iter-sweep-side": &config.IterSweepSide,
		"iter-sweep-min":  &config.IterSweepMin,
		"iter-sweep-max":  &config.IterSweepMax,
		"iter-sweep-step": &config.IterSweepStep,
		"max-samples":     &config.MaxSamples,
		"max-iter":        &config.MaxIterLimit,
	}
	for name, ptr := range ints {
		if !isFlagSet(fs, name) {
			*ptr = getEnvInt(envKey(name), *ptr)
		}
	}

	if !isFlagSet(fs, "seed") {
		config.Seed = getEnvUint64("SEED", config.Seed)
	}
	if !isFlagSet(fs, "sweep-sides") {
		config.SweepSides = getEnvIntList("SWEEP_SIDES", config.SweepSides)
	}
	if !isFlagSet(fs, "sweep-iters") {
		config.SweepIters = getEnvIntList("SWEEP_ITERS", config.SweepIters)
	}
}

func applyDurationOverrides(config *AppConfig, fs *pflag.FlagSet) {
	if !isFlagSet(fs, "timeout") {
		config.Timeout = getEnvDuration("TIMEOUT", config.Timeout)
	}
}

func applyStringOverrides(config *AppConfig, fs *pflag.FlagSet) {
	strs := map[string]*string{
		"method":              &config.Method,
		"lhs-pairing":         &config.LHSPairing,
		"ortho-backend":       &config.OrthoBackend,
		"ortho-lib-dir":       &config.OrthoLibDir,
		"calibration-profile": &config.CalibrationProfile,
		"log-level":           &config.LogLevel,
		"store":               &config.Store,
		"results-dir":         &config.ResultsDir,
		"s3-bucket":           &config.S3Bucket,
		"s3-region":           &config.S3Region,
		"s3-endpoint":         &config.S3Endpoint,
		"ledger-driver":       &config.LedgerDriver,
		"ledger-dsn":          &config.LedgerDSN,
		"port":                &config.Port,
	}
	for name, ptr := range strs {
		if !isFlagSet(fs, name) {
			*ptr = getEnvString(envKey(name), *ptr)
		}
	}
}

func applyBooleanOverrides(config *AppConfig, fs *pflag.FlagSet) {
	if !isFlagSet(fs, "json") {
		config.JSONOutput = getEnvBool("JSON", config.JSONOutput)
	}
	if !isFlagSet(fs, "quiet") {
		config.Quiet = getEnvBool("QUIET", config.Quiet)
	}
	if !isFlagSet(fs, "no-color") {
		config.NoColor = getEnvBool("NO_COLOR", config.NoColor)
	}
	if !isFlagSet(fs, "ortho-native-seed") {
		config.OrthoNativeSeed = getEnvBool("ORTHO_NATIVE_SEED", config.OrthoNativeSeed)
	}
	if !isFlagSet(fs, "s3-path-style") {
		config.S3PathStyle = getEnvBool("S3_PATH_STYLE", config.S3PathStyle)
	}
}
