// Package bwstest provides an in-process stand-in for the bws executable.
//
// FakeCLI implements invoker.Runner and keeps a small in-memory server. It
// understands the subset of the bws command line that bwscache uses, so the
// cache and the CLI can be tested without network access or a real account.
package bwstest

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bwscache/bwscache/internal/invoker"
)

// Version is what the fake reports for -V.
const Version = "bws 1.0.0"

// HelpText is what the fake reports for -h.
const HelpText = `Bitwarden Secrets CLI

Usage: bws [OPTIONS] <COMMAND>

Commands:
  project  Commands available on Projects
  secret   Commands available on Secrets
  help     Print this message or the help of the given subcommand(s)
`

// Project mirrors one element of `bws project list`.
type Project struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	CreationDate   string `json:"creationDate"`
	RevisionDate   string `json:"revisionDate"`
}

// Record mirrors one element of `bws secret list`.
type Record struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	ProjectID      string `json:"projectId"`
	Key            string `json:"key"`
	Value          string `json:"value"`
	Note           string `json:"note"`
	CreationDate   string `json:"creationDate"`
	RevisionDate   string `json:"revisionDate"`
}

type stored struct {
	Record
	// listedIn is the project whose listing returns this record. It differs
	// from ProjectID only for records added with AddStraySecret.
	listedIn string
}

type canned struct {
	exitCode int
	output   string
}

// FakeCLI is a scripted bws. It is safe for concurrent use.
type FakeCLI struct {
	mu sync.Mutex

	token    string
	orgID    string
	projects []Project
	secrets  []stored

	calls     [][]string
	failures  map[string][]canned
	overrides map[string]string

	now func() time.Time
}

var _ invoker.Runner = (*FakeCLI)(nil)

// NewFakeCLI returns a fake that accepts only token.
func NewFakeCLI(token string) *FakeCLI {
	return &FakeCLI{
		token:     token,
		orgID:     uuid.NewString(),
		failures:  make(map[string][]canned),
		overrides: make(map[string]string),
		now:       time.Now,
	}
}

// AddProject creates a project and returns its ID.
func (f *FakeCLI) AddProject(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ts := f.timestamp()
	p := Project{
		ID:             uuid.NewString(),
		OrganizationID: f.orgID,
		Name:           name,
		CreationDate:   ts,
		RevisionDate:   ts,
	}
	f.projects = append(f.projects, p)
	return p.ID
}

// AddSecret stores a secret directly, bypassing the command line. Duplicate
// keys are allowed, as they are on the real server.
func (f *FakeCLI) AddSecret(projectID, key, value string) Record {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.insert(projectID, projectID, key, value)
}

// AddStraySecret stores a secret owned by ownerID that is nevertheless
// returned when listing listedIn.
func (f *FakeCLI) AddStraySecret(listedIn, ownerID, key, value string) Record {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.insert(listedIn, ownerID, key, value)
}

// Secrets returns the server-side records of a project.
func (f *FakeCLI) Secrets(projectID string) []Record {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Record
	for _, s := range f.secrets {
		if s.listedIn == projectID {
			out = append(out, s.Record)
		}
	}
	return out
}

// FailNext makes the next call of command (e.g. "secret delete") exit with
// exitCode and print output instead of running.
func (f *FakeCLI) FailNext(command string, exitCode int, output string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures[command] = append(f.failures[command], canned{exitCode: exitCode, output: output})
}

// Override makes every successful call of command print output verbatim.
func (f *FakeCLI) Override(command, output string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.overrides[command] = output
}

// Calls returns the argument lists of every call so far.
func (f *FakeCLI) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([][]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = slices.Clone(c)
	}
	return out
}

// CallCount returns how many calls of command were made.
func (f *FakeCLI) CallCount(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if commandOf(parseArgs(c).positional) == command {
			n++
		}
	}
	return n
}

// Run implements invoker.Runner.
func (f *FakeCLI) Run(ctx context.Context, program string, args []string) (invoker.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, slices.Clone(args))

	if err := ctx.Err(); err != nil {
		return invoker.Result{ExitCode: -1}, nil
	}

	p := parseArgs(args)
	if p.help {
		return ok(HelpText), nil
	}
	if p.version {
		return ok(Version + "\n"), nil
	}
	if p.token != f.token {
		return fail(1, "Error: \n   0: Failed to authenticate: access token is invalid\n"), nil
	}

	command := commandOf(p.positional)
	if queued := f.failures[command]; len(queued) > 0 {
		f.failures[command] = queued[1:]
		return fail(queued[0].exitCode, queued[0].output), nil
	}
	if out, found := f.overrides[command]; found {
		return ok(out), nil
	}

	rest := p.positional[min(2, len(p.positional)):]
	switch command {
	case "project list":
		return f.jsonResult(f.projects)
	case "secret list":
		return f.secretList(rest)
	case "secret get":
		return f.secretGet(rest)
	case "secret create":
		return f.secretCreate(rest)
	case "secret edit":
		return f.secretEdit(rest, p)
	case "secret delete":
		return f.secretDelete(rest)
	default:
		return fail(2, fmt.Sprintf("error: unrecognized subcommand '%s'\n", strings.Join(p.positional, " "))), nil
	}
}

func (f *FakeCLI) secretList(rest []string) (invoker.Result, error) {
	if len(rest) != 1 {
		return fail(2, "error: secret list requires exactly one project id\n"), nil
	}
	if f.project(rest[0]) == nil {
		return fail(1, fmt.Sprintf("Error: \n   0: Project %s not found\n", rest[0])), nil
	}
	records := []Record{}
	for _, s := range f.secrets {
		if s.listedIn == rest[0] {
			records = append(records, s.Record)
		}
	}
	return f.jsonResult(records)
}

func (f *FakeCLI) secretGet(rest []string) (invoker.Result, error) {
	if len(rest) != 1 {
		return fail(2, "error: secret get requires a secret id\n"), nil
	}
	i := f.secretIndex(rest[0])
	if i < 0 {
		return fail(1, "Error: \n   0: Resource not found.\n"), nil
	}
	return f.jsonResult(f.secrets[i].Record)
}

func (f *FakeCLI) secretCreate(rest []string) (invoker.Result, error) {
	if len(rest) != 3 {
		return fail(2, "error: secret create requires <KEY> <VALUE> <PROJECT_ID>\n"), nil
	}
	if f.project(rest[2]) == nil {
		return fail(1, fmt.Sprintf("Error: \n   0: Project %s not found\n", rest[2])), nil
	}
	return f.jsonResult(f.insert(rest[2], rest[2], rest[0], rest[1]))
}

func (f *FakeCLI) secretEdit(rest []string, p parsed) (invoker.Result, error) {
	if len(rest) != 1 {
		return fail(2, "error: secret edit requires a secret id\n"), nil
	}
	i := f.secretIndex(rest[0])
	if i < 0 {
		return fail(1, "Error: \n   0: Resource not found.\n"), nil
	}
	if p.value != nil {
		f.secrets[i].Value = *p.value
	}
	f.secrets[i].RevisionDate = f.timestamp()
	return f.jsonResult(f.secrets[i].Record)
}

func (f *FakeCLI) secretDelete(rest []string) (invoker.Result, error) {
	if len(rest) == 0 {
		return fail(2, "error: secret delete requires at least one secret id\n"), nil
	}
	for _, id := range rest {
		if f.secretIndex(id) < 0 {
			return fail(1, "Error: \n   0: Resource not found.\n"), nil
		}
	}
	f.secrets = slices.DeleteFunc(f.secrets, func(s stored) bool {
		return slices.Contains(rest, s.ID)
	})
	noun := "secret"
	if len(rest) > 1 {
		noun = "secrets"
	}
	return ok(fmt.Sprintf("%d %s deleted successfully.\n", len(rest), noun)), nil
}

func (f *FakeCLI) insert(listedIn, ownerID, key, value string) Record {
	ts := f.timestamp()
	r := Record{
		ID:             uuid.NewString(),
		OrganizationID: f.orgID,
		ProjectID:      ownerID,
		Key:            key,
		Value:          value,
		CreationDate:   ts,
		RevisionDate:   ts,
	}
	f.secrets = append(f.secrets, stored{Record: r, listedIn: listedIn})
	return r
}

func (f *FakeCLI) project(id string) *Project {
	for i := range f.projects {
		if f.projects[i].ID == id {
			return &f.projects[i]
		}
	}
	return nil
}

func (f *FakeCLI) secretIndex(id string) int {
	return slices.IndexFunc(f.secrets, func(s stored) bool { return s.ID == id })
}

func (f *FakeCLI) timestamp() string {
	return f.now().UTC().Format(time.RFC3339Nano)
}

func (f *FakeCLI) jsonResult(v any) (invoker.Result, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return invoker.Result{}, err
	}
	return ok(string(out) + "\n"), nil
}

type parsed struct {
	positional []string
	token      string
	output     string
	color      string
	value      *string
	help       bool
	version    bool
}

func parseArgs(args []string) parsed {
	var p parsed
	for i := 0; i < len(args); i++ {
		a := args[i]
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}
		switch a {
		case "--access-token", "-t":
			p.token = next()
		case "--output", "-o":
			p.output = next()
		case "--color", "-c":
			p.color = next()
		case "--value":
			v := next()
			p.value = &v
		case "-h", "--help":
			p.help = true
		case "-V", "--version":
			p.version = true
		default:
			if v, found := strings.CutPrefix(a, "--value="); found {
				p.value = &v
				continue
			}
			p.positional = append(p.positional, a)
		}
	}
	return p
}

// commandOf returns the leading noun and verb, e.g. "secret list".
func commandOf(positional []string) string {
	return strings.Join(positional[:min(2, len(positional))], " ")
}

func ok(output string) invoker.Result {
	return invoker.Result{Output: []byte(output)}
}

func fail(code int, output string) invoker.Result {
	return invoker.Result{ExitCode: code, Output: []byte(output)}
}
