package cli

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"ICPVanity/internal/generator"
	"ICPVanity/internal/identity"
	"ICPVanity/internal/patterns"
	"ICPVanity/internal/principal"
)

const separator = "----------------------------------------"

// console prints search output for humans. It doubles as the progress observer.
type console struct {
	w           io.Writer
	prefix      string
	hideSecrets bool
}

func (c *console) OnProgress(p generator.Progress) {
	fmt.Fprintf(c.w, "[progress] attempts=%s elapsed=%.0fs sample=%s rate=%s/s eta=%s\n",
		humanize.Comma(int64(p.Iterations)),
		p.Elapsed.Seconds(),
		p.Sample,
		humanize.Comma(roundRate(p.Rate)),
		eta(patterns.EstimateDuration(c.prefix, p.Rate)),
	)
}

// eta formats an expected wait in seconds. Attempts are independent, so the
// expected remaining time does not shrink as the search goes on.
func eta(secs float64) string {
	if math.IsNaN(secs) || secs > float64(math.MaxInt64/int64(time.Second)) {
		return "?"
	}
	return time.Duration(secs * float64(time.Second)).Round(time.Second).String()
}

func (c *console) printStart(prefix string, count int) {
	fmt.Fprintf(c.w, "Searching for principal prefix %q\n", prefix)
	fmt.Fprintf(c.w, "Expected attempts: ~%s (%d^%d)\n",
		humanize.BigComma(patterns.EstimateAttempts(prefix)),
		len(principal.Alphabet), patterns.Significant(prefix),
	)
	if count > 1 {
		fmt.Fprintf(c.w, "Runs: %d\n", count)
	}
	fmt.Fprintln(c.w)
}

func (c *console) printRun(i, n int) {
	fmt.Fprintf(c.w, "Run %d/%d\n", i, n)
}

func (c *console) printSeparator() {
	fmt.Fprintln(c.w, separator)
}

func (c *console) printResult(res *generator.Result) {
	fmt.Fprintf(c.w, "Principal:  %s\n", res.Principal)
	fmt.Fprintf(c.w, "Mnemonic:   %s\n", c.secret(res.Mnemonic))
	fmt.Fprintf(c.w, "Attempts:   %d\n", res.Iterations)
	fmt.Fprintf(c.w, "Elapsed:    %.2fs\n", res.ElapsedSeconds())
	fmt.Fprintf(c.w, "Rate:       %d attempts/s\n", roundRate(res.Rate()))
}

func (c *console) printIdentity(id identity.Identity, raw []byte) {
	fmt.Fprintf(c.w, "Principal:  %s\n", id.Principal)
	fmt.Fprintf(c.w, "Bytes:      %x\n", raw)
	fmt.Fprintf(c.w, "Mnemonic:   %s\n", c.secret(id.Mnemonic))
}

func (c *console) secret(s string) string {
	if c.hideSecrets {
		return "[REDACTED]"
	}
	return s
}

func roundRate(r float64) int64 {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return int64(math.Round(r))
}
