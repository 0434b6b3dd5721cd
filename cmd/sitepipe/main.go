package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/sitepipe/sitepipe/internal"
	"github.com/sitepipe/sitepipe/internal/types"
	"golang.org/x/term"
)

// sitepipe is the operator command line for a running sitepipe server.
//
//	sitepipe -server http://localhost:8080 stacks
//	sitepipe provision -workload demo -environment dev ...
//	sitepipe teardown -stack 3
//	sitepipe drain -operation delete -bucket demo-dev-eu-north-1-site
func main() {
	log.SetFlags(0)

	serverURL := flag.String("server", "http://localhost:8080", "sitepipe server base URL")
	apiKey := flag.String("api-key", os.Getenv("SITEPIPE_API_KEY"), "operator api key")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("usage: sitepipe [flags] <stacks|provision|teardown|drain|api-keys>")
	}

	cli := &client{
		baseURL: *serverURL,
		apiKey:  *apiKey,
		http:    &http.Client{Timeout: 30 * time.Minute},
	}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "stacks":
		err = cli.listStacks()
	case "provision":
		err = cli.provision(flag.Args()[1:])
	case "teardown":
		err = cli.teardown(flag.Args()[1:])
	case "drain":
		err = cli.drain(flag.Args()[1:])
	case "api-keys":
		err = cli.listAPIKeys()
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		log.Fatal(err)
	}
}

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func (c *client) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(internal.APIKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, string(b))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *client) listStacks() error {
	var stacks []map[string]any
	if err := c.do(http.MethodGet, "/api/stacks", nil, &stacks); err != nil {
		return err
	}
	for _, s := range stacks {
		fmt.Printf(
			"%v\t%v/%v\t%v\t%v\n",
			s["StackID"], s["Workload"], s["Environment"], s["BucketName"], s["Status"],
		)
	}
	return nil
}

func (c *client) provision(args []string) error {
	fs := flag.NewFlagSet("provision", flag.ExitOnError)
	workload := fs.String("workload", "", "workload name")
	environment := fs.String("environment", "", "environment name")
	region := fs.String("region", "eu-north-1", "region")
	deployer := fs.String("deployer", "", "deployer identity")
	repository := fs.String("repository", "", "source repository (owner/name)")
	branch := fs.String("branch", "main", "branch")
	tier := fs.String("price-tier", "economy", "price tier (economy|standard|global)")
	image := fs.String("build-image", "node:20-alpine", "build container image")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// the connection reference is a secret, never taken from argv
	fmt.Fprint(os.Stderr, "connection reference: ")
	ref, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("err reading connection reference: %w", err)
	}

	params := types.StackParams{
		Workload:      *workload,
		Environment:   *environment,
		Region:        *region,
		Deployer:      *deployer,
		Repository:    *repository,
		Branch:        *branch,
		ConnectionRef: string(ref),
		PriceTier:     types.PriceTier(*tier),
		BuildImage:    *image,
	}
	if err := params.Validate(); err != nil {
		return err
	}

	var out struct {
		StackID    int64  `json:"stack_id"`
		BucketName string `json:"bucket_name"`
		URL        string `json:"url"`
	}
	if err := c.do(http.MethodPost, "/api/stacks", &params, &out); err != nil {
		return err
	}
	fmt.Printf("stack %d provisioned\nbucket: %s\nurl: %s\n", out.StackID, out.BucketName, out.URL)
	return nil
}

func (c *client) teardown(args []string) error {
	fs := flag.NewFlagSet("teardown", flag.ExitOnError)
	stackID := fs.Int64("stack", 0, "stack id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *stackID == 0 {
		return fmt.Errorf("missing -stack")
	}
	if err := c.do(
		http.MethodDelete, fmt.Sprintf("/api/stacks/%d", *stackID), nil, nil,
	); err != nil {
		return err
	}
	fmt.Printf("stack %d torn down\n", *stackID)
	return nil
}

func (c *client) drain(args []string) error {
	fs := flag.NewFlagSet("drain", flag.ExitOnError)
	operation := fs.String("operation", "", "operation (create|update|delete)")
	bucket := fs.String("bucket", "", "bucket name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var resp struct {
		Status      string `json:"status"`
		ErrorDetail string `json:"errorDetail"`
	}
	if err := c.do(http.MethodPost, "/api/drain", map[string]string{
		"operation":  *operation,
		"bucketName": *bucket,
	}, &resp); err != nil {
		return err
	}
	if resp.ErrorDetail != "" {
		fmt.Printf("%s: %s\n", resp.Status, resp.ErrorDetail)
	} else {
		fmt.Println(resp.Status)
	}
	return nil
}

func (c *client) listAPIKeys() error {
	var keys []map[string]any
	if err := c.do(http.MethodGet, "/api/api-keys", nil, &keys); err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Printf("%v\t%v\n", k["ID"], k["Value"])
	}
	return nil
}
