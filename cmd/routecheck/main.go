package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/TecharoHQ/codegate/lib/config"
	"github.com/TecharoHQ/codegate/lib/gate"

	"sigs.k8s.io/yaml"
)

var (
	policyFname  = flag.String("policy", "", "path to the policy file, defaults to the built-in policy")
	outputFile   = flag.String("output", "", "output file path (use - for stdout, defaults to stdout)")
	outputFormat = flag.String("format", "yaml", "output format: yaml or json")
	helpFlag     = flag.Bool("help", false, "show help")
)

// Result is the routing decision for one request line.
type Result struct {
	Request string `json:"request"`
	Gated   bool   `json:"gated"`
	Type    string `json:"type,omitempty"`
	Route   string `json:"route,omitempty"`
	ID      string `json:"id,omitempty"`
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s [options] [METHOD /path ...]\n\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\nExamples:")
		fmt.Fprintln(os.Stderr, "  # Show which challenge gates a request")
		fmt.Fprintln(os.Stderr, "  routecheck -policy codegate.yaml POST /login")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "  # Check many requests read from stdin, one per line")
		fmt.Fprintln(os.Stderr, "  cat requests.txt | routecheck -format json -")
		os.Exit(2)
	}
}

func main() {
	flag.Parse()

	if *helpFlag || len(flag.Args()) == 0 {
		flag.Usage()
	}

	policy, err := config.LoadFile(*policyFname)
	if err != nil {
		log.Fatalf("can't load policy: %v", err)
	}

	var lines []string
	if flag.Arg(0) == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("failed to read requests from stdin: %v", err)
		}
		lines = strings.Split(string(data), "\n")
	} else {
		lines = []string{strings.Join(flag.Args(), " ")}
	}

	results, err := check(policy, lines)
	if err != nil {
		log.Fatal(err)
	}

	var output []byte
	switch strings.ToLower(*outputFormat) {
	case "yaml":
		output, err = yaml.Marshal(results)
	case "json":
		output, err = json.MarshalIndent(results, "", "  ")
	default:
		log.Fatalf("unsupported output format: %s (use yaml or json)", *outputFormat)
	}

	if err != nil {
		log.Fatalf("failed to marshal output: %v", err)
	}

	if *outputFile == "" || *outputFile == "-" {
		fmt.Print(string(output))
		return
	}

	if err := os.WriteFile(*outputFile, output, 0644); err != nil {
		log.Fatalf("failed to write output file: %v", err)
	}
}

// check resolves every "METHOD /path" line against the routes of policy.
// Blank lines and lines starting with # are skipped.
func check(policy *config.Config, lines []string) ([]Result, error) {
	table := gate.NewTable(policy.Routes)
	var results []Result

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want \"METHOD /path\", got %q", i+1, line)
		}

		method := strings.ToUpper(fields[0])
		result := Result{Request: method + " " + fields[1]}

		if r, id, ok := table.Resolve(method, fields[1]); ok {
			result.Gated = true
			result.Type = string(r.Type)
			result.Route = r.String()
			result.ID = id
		}

		results = append(results, result)
	}

	return results, nil
}
