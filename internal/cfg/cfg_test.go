package cfg

import (
	"flag"
	"math"
	"slices"
	"strings"
	"testing"
	"time"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		ModelManifest:         "models/models.yaml",
		EmergencyThreshold:    0.8,
		NoEmergencyThreshold:  0.4,
		NotifyOn:              "emergency",
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.EmergencyThreshold != 0.8 || c.NoEmergencyThreshold != 0.4 {
		t.Errorf("thresholds = %v/%v, want 0.8/0.4", c.EmergencyThreshold, c.NoEmergencyThreshold)
	}
	if c.NotifyOn != "emergency" {
		t.Errorf("NotifyOn = %q, want emergency", c.NotifyOn)
	}
	if c.AMQPExchange != "vitaltriage.evaluations" {
		t.Errorf("AMQPExchange = %q, want vitaltriage.evaluations", c.AMQPExchange)
	}
	if c.EvaluationTTL != 72*time.Hour {
		t.Errorf("EvaluationTTL = %v, want 72h", c.EvaluationTTL)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-model-manifest", "/etc/vitaltriage/models.yaml",
		"-emergency-threshold", "0.9",
		"-no-emergency-threshold", "0.3",
		"-redis-url", "redis://cache:6379/2",
		"-evaluation-ttl", "1h",
		"-notify-on", "disagreement",
		"-api-token", "a, b,,",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 || c.ShutdownBudgetSeconds != 120 || c.APIPort != 9090 {
		t.Errorf("ints = %d/%d/%d, want 30/120/9090", c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort)
	}
	if c.ModelManifest != "/etc/vitaltriage/models.yaml" {
		t.Errorf("ModelManifest = %q", c.ModelManifest)
	}
	if th := c.Thresholds(); th.Emergency != 0.9 || th.NoEmergency != 0.3 {
		t.Errorf("Thresholds = %+v, want 0.9/0.3", th)
	}
	if c.RedisURL != "redis://cache:6379/2" || c.EvaluationTTL != time.Hour {
		t.Errorf("redis = %q ttl %v", c.RedisURL, c.EvaluationTTL)
	}
	if c.NotifyOn != "disagreement" {
		t.Errorf("NotifyOn = %q, want disagreement", c.NotifyOn)
	}
	if got := c.Tokens(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Tokens = %q, want [a b]", got)
	}
}

func TestTokens_Empty(t *testing.T) {
	t.Parallel()

	c := validBase()
	if got := c.Tokens(); len(got) != 0 {
		t.Errorf("Tokens = %q, want none", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	with := func(mut func(*Config)) Config {
		c := validBase()
		mut(&c)
		return c
	}

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{name: "defaults are valid", cfg: validBase()},
		{name: "minimum valid values", cfg: with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 1, 2, 1 })},
		{name: "maximum valid values", cfg: with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 299, 300, 65535 })},
		// DrainSeconds boundaries
		{"drain zero", with(func(c *Config) { c.DrainSeconds = 0 }), true, []string{"DRAIN_SECONDS"}},
		{"drain negative", with(func(c *Config) { c.DrainSeconds = -1 }), true, []string{"DRAIN_SECONDS"}},
		{"drain above max", with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 }), true, []string{"DRAIN_SECONDS"}},
		{"drain at upper bound", with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 300, 300 }), true, []string{"must be greater than"}},
		// ShutdownBudgetSeconds boundaries
		{"budget zero", with(func(c *Config) { c.ShutdownBudgetSeconds = 0 }), true, []string{"SHUTDOWN_BUDGET_SECONDS"}},
		{"budget above max", with(func(c *Config) { c.ShutdownBudgetSeconds = 301 }), true, []string{"SHUTDOWN_BUDGET_SECONDS"}},
		{"budget equals drain", with(func(c *Config) { c.ShutdownBudgetSeconds = 60 }), true, []string{"must be greater than"}},
		{name: "budget is drain plus one", cfg: with(func(c *Config) { c.ShutdownBudgetSeconds = 61 })},
		// APIPort boundaries
		{"port zero", with(func(c *Config) { c.APIPort = 0 }), true, []string{"HTTP_PORT"}},
		{"port above max", with(func(c *Config) { c.APIPort = 65536 }), true, []string{"HTTP_PORT"}},
		// Models and thresholds
		{"no manifest", with(func(c *Config) { c.ModelManifest = "" }), true, []string{"MODEL_MANIFEST"}},
		{"inverted thresholds", with(func(c *Config) { c.EmergencyThreshold, c.NoEmergencyThreshold = 0.3, 0.6 }), true, []string{"EMERGENCY_THRESHOLD"}},
		{"threshold above one", with(func(c *Config) { c.EmergencyThreshold = 1.5 }), true, []string{"EMERGENCY_THRESHOLD"}},
		{"threshold NaN", with(func(c *Config) { c.NoEmergencyThreshold = math.NaN() }), true, []string{"EMERGENCY_THRESHOLD"}},
		{name: "equal thresholds", cfg: with(func(c *Config) { c.EmergencyThreshold, c.NoEmergencyThreshold = 0.5, 0.5 })},
		// Stores
		{name: "redis only", cfg: with(func(c *Config) { c.RedisURL = "redis://localhost:6379" })},
		{"both stores", with(func(c *Config) { c.RedisURL, c.DatabaseURL = "redis://r", "postgres://p" }), true, []string{"mutually exclusive"}},
		{"negative ttl", with(func(c *Config) { c.EvaluationTTL = -time.Second }), true, []string{"EVALUATION_TTL"}},
		// Notifications
		{"unknown notify policy", with(func(c *Config) { c.NotifyOn = "sometimes" }), true, []string{"NOTIFY_ON"}},
		{name: "notify all", cfg: with(func(c *Config) { c.NotifyOn = "all" })},
		{name: "amqp with exchange", cfg: with(func(c *Config) { c.AMQPURL, c.AMQPExchange = "amqp://localhost", "triage" })},
		{"amqp without exchange", with(func(c *Config) { c.AMQPURL = "amqp://localhost" }), true, []string{"AMQP_EXCHANGE"}},
		// Error accumulation: all fields invalid
		{
			name:      "all fields invalid",
			cfg:       Config{EmergencyThreshold: 0.1, NoEmergencyThreshold: 0.9},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "MODEL_MANIFEST", "EMERGENCY_THRESHOLD", "NOTIFY_ON"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	seeds := []struct {
		drain, budget, port int
		emergency, noEmerg  float64
		manifest, notifyOn  string
	}{
		{60, 90, 8080, 0.8, 0.4, "m.yaml", "emergency"},
		{1, 2, 1, 1, 0, "m", "none"},
		{299, 300, 65535, 0.5, 0.5, "m", "all"},
		{0, 0, 0, 0, 0, "", ""},
		{-1, -1, -1, -1, 2, "", "x"},
		{301, 302, 65536, math.Inf(1), 0.4, "m", "disagreement"},
		{math.MinInt32, math.MinInt32, math.MinInt32, math.NaN(), 0.4, "", ""},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.emergency, s.noEmerg, s.manifest, s.notifyOn)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port int, emergency, noEmerg float64, manifest, notifyOn string) {
		c := Config{
			DrainSeconds:          drain,
			ShutdownBudgetSeconds: budget,
			APIPort:               port,
			ModelManifest:         manifest,
			EmergencyThreshold:    emergency,
			NoEmergencyThreshold:  noEmerg,
			NotifyOn:              notifyOn,
		}
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		manifestOK := manifest != ""
		thresholdsOK := !math.IsNaN(emergency) && !math.IsNaN(noEmerg) &&
			noEmerg >= 0 && emergency <= 1 && noEmerg <= emergency
		notifyOK := notifyOn == "none" || notifyOn == "emergency" || notifyOn == "disagreement" || notifyOn == "all"

		allValid := drainOK && budgetOK && portOK && crossOK && manifestOK && thresholdsOK && notifyOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
