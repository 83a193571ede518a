package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/examples/airport"
	"github.com/sarchlab/procsim/tracing"
	"github.com/sirupsen/logrus"
)

var _ = Describe("Run", func() {
	var (
		dir     string
		envFile string
		out     *bytes.Buffer
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		envFile = filepath.Join(dir, ".env")
		out = bytes.NewBuffer(nil)

		level := logrus.GetLevel()
		DeferCleanup(func() {
			logrus.SetLevel(level)
			os.Unsetenv(EnvLogLevel)
			os.Unsetenv(EnvMonitorPort)
		})
	})

	execute := func(args ...string) error {
		rootCmd := NewRootCmd()
		rootCmd.SetOut(out)
		rootCmd.SetErr(GinkgoWriter)
		rootCmd.SetArgs(append([]string{"--env-file", envFile}, args...))

		return rootCmd.ExecuteContext(context.Background())
	}

	writeEnv := func(content string) {
		Expect(os.WriteFile(envFile, []byte(content), 0o600)).To(Succeed())
	}

	It("should run the default scenario", func() {
		Expect(execute("run", "--tmax", "15")).To(Succeed())

		Expect(out.String()).To(MatchRegexp(`a1\s+runway\s+1.00\s+4.00`))
		Expect(out.String()).To(MatchRegexp(`a2\s+gate\s+7.00\s+13.00`))
		Expect(out.String()).To(MatchRegexp(`final time\s+13.00`))
		Expect(out.String()).To(MatchRegexp(`max in air\s+2`))
		Expect(out.String()).To(MatchRegexp(`max on runway\s+1`))
		Expect(out.String()).To(MatchRegexp(`runway busy\s+6.00`))
	})

	It("should stop at tmax", func() {
		Expect(execute("run", "--tmax", "8")).To(Succeed())

		Expect(out.String()).To(MatchRegexp(`final time\s+8.00`))
		Expect(out.String()).To(MatchRegexp(`departed\s+0`))
	})

	It("should run a scenario file", func() {
		cfgFile := filepath.Join(dir, "airport.yaml")
		Expect(os.WriteFile(cfgFile,
			[]byte("gates: 1\narrivals: [0]\n"), 0o600)).To(Succeed())

		Expect(execute("run", "--config", cfgFile)).To(Succeed())

		Expect(out.String()).To(MatchRegexp(`final time\s+9.00`))
	})

	It("should record the movements and the trace", func() {
		record := filepath.Join(dir, "out")

		Expect(execute("run", "--record", record)).To(Succeed())

		reader := datarecording.NewReader(record + ".sqlite3")
		defer reader.Close()

		reader.MapTable(MovementTableName, airport.Movement{})
		movements, _, err := reader.Query(context.Background(),
			MovementTableName, datarecording.QueryParams{
				Where:   "Resource = ?",
				Args:    []any{"runway"},
				OrderBy: "EnterAt",
			})
		Expect(err).NotTo(HaveOccurred())
		Expect(movements).To(HaveLen(2))
		Expect(*movements[1].(*airport.Movement)).To(Equal(airport.Movement{
			Aircraft: "a2", Resource: "runway", EnterAt: 4, LeaveAt: 7,
		}))

		reader.MapTable(tracing.TraceTableName, tracing.TaskEntry{})
		count, err := reader.Count(context.Background(),
			tracing.TraceTableName, datarecording.QueryParams{
				Where: "Kind = ?",
				Args:  []any{tracing.ProcessTaskKind},
			})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))

		count, err = reader.Count(context.Background(),
			tracing.TraceTableName, datarecording.QueryParams{
				Where: "Kind = ?",
				Args:  []any{airport.TaskKindGate},
			})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))
	})

	It("should take the log level from the env file", func() {
		writeEnv(EnvLogLevel + "=debug\n")

		Expect(execute("run", "--tmax", "0")).To(Succeed())

		Expect(logrus.GetLevel()).To(Equal(logrus.DebugLevel))
	})

	It("should prefer the flag over the env file", func() {
		writeEnv(EnvLogLevel + "=debug\n")

		Expect(execute("--log-level", "error", "run", "--tmax", "0")).
			To(Succeed())

		Expect(logrus.GetLevel()).To(Equal(logrus.ErrorLevel))
	})

	It("should reject invalid options", func() {
		Expect(execute("--log-level", "loud", "run")).NotTo(Succeed())
		Expect(execute("run", "--open")).NotTo(Succeed())
		Expect(execute("run", "--monitor-port", "9000")).NotTo(Succeed())
		Expect(execute("run", "--tmax", "-1")).NotTo(Succeed())
		Expect(execute("run", "--config", filepath.Join(dir, "none.yaml"))).
			NotTo(Succeed())
	})

	It("should reject an invalid monitor port in the env file", func() {
		writeEnv(EnvMonitorPort + "=abc\n")

		err := execute("run", "--monitor")

		Expect(err).To(MatchError(ContainSubstring(EnvMonitorPort)))
	})
})
