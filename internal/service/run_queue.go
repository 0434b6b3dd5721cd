package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pkg/sftp"
	"github.com/sitepipe/sitepipe/internal"
	"github.com/sitepipe/sitepipe/internal/store"
	"github.com/sitepipe/sitepipe/internal/types"
	"github.com/sitepipe/sitepipe/internal/util"
	"golang.org/x/crypto/ssh"
)

// ArtifactUploader pushes a single deploy artifact file into a bucket.
type ArtifactUploader interface {
	UploadFile(ctx context.Context, bucket, key string, body io.Reader) error
}

// CacheInvalidator flushes cached paths from a distribution after a deploy.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, id string, paths []string, callerRef string) error
}

// StackRunData is everything a queued run needs to execute: the stack it
// deploys, and its builder with the SSH key already decrypted.
type StackRunData struct {
	Stack   *store.Stack
	Builder *store.Builder
}

type runDataProvider interface {
	GetStackRunData(context.Context, int64) (*StackRunData, error)
	GetRunByID(context.Context, int64) (*store.Run, error)
	UpdateRunStartedOn(context.Context, int64, string, store.RunStatus, *time.Time) error
	UpdateRunStage(context.Context, int64, store.RunStage, *time.Time) error
	UpdateRunEndedOn(context.Context, int64, store.RunStatus, *string, *time.Time) error
	AppendRunOutput(context.Context, int64, string) error
}

func NewRunQueue(
	runData runDataProvider,
	uploader ArtifactUploader,
	invalidator CacheInvalidator,
	uuidGenerator UUIDGenerator,
	maxRuns int64,
) *RunQueue {
	return &RunQueue{
		runData:       runData,
		uploader:      uploader,
		invalidator:   invalidator,
		uuidGenerator: uuidGenerator,
		queue:         make(chan *store.Run, maxRuns),
		done:          make(chan struct{}),
		cancelRunMap:  NewCancelMap[int64](),
	}
}

type RunQueue struct {
	runData       runDataProvider
	uploader      ArtifactUploader
	invalidator   CacheInvalidator
	uuidGenerator UUIDGenerator

	queue        chan *store.Run
	done         chan struct{}
	cancelRunMap *CancelMap[int64]

	outputCh chan string
	mu       sync.Mutex
}

func (rq *RunQueue) CancelRun(runID int64) {
	rq.cancelRunMap.Call(runID)
}

func (rq *RunQueue) Enqueue(r *store.Run) error {
	select {
	case rq.queue <- r:
		return nil
	default:
		return NewErrRunQueueFull()
	}
}

func (rq *RunQueue) Run() {
	for {
		select {
		case run := <-rq.queue:
			rq.outputCh = make(chan string)

			ctx, cancel := context.WithCancel(context.Background())
			rq.cancelRunMap.AddCancel(run.RunID, cancel)

			go rq.handleOutput(ctx, run.RunID)

			if err := rq.processRun(ctx, run); err != nil {
				endedOn := time.Now().UTC()
				if _, ok := err.(RunCancelError); ok {
					run.Status = store.StatusCancelled
				} else {
					run.Status = store.StatusFailed
				}
				if sqlErr := rq.runData.UpdateRunEndedOn(
					context.Background(),
					run.RunID,
					run.Status,
					run.ArtifactKey,
					&endedOn,
				); sqlErr != nil {
					log.Println("err updating run status to failed:", errors.Join(err, sqlErr))
				}
				log.Println("err processing run:", err)

				failMessage := `
=============================================
FAIL || Run failed, site was not deployed.
=============================================
`
				rq.outputCh <- failMessage
			}

			close(rq.outputCh)
			rq.cancelRunMap.RemoveCancel(run.RunID)
		case <-rq.done:
			close(rq.queue)
			return
		}
	}
}

func (rq *RunQueue) Shutdown() {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	select {
	case <-rq.done:
	default:
		close(rq.done)
	}
}

func (rq *RunQueue) handleOutput(ctx context.Context, runID int64) {
	for out := range rq.outputCh {
		if err := rq.runData.AppendRunOutput(ctx, runID, out); err != nil {
			log.Printf("err appending run output: %+v\n", err)
		}
	}
}

// processRun walks a run through its three stages. The stage order is
// fixed: a build never starts before the source checkout succeeded, and
// a deploy never starts before every build command passed.
func (rq *RunQueue) processRun(
	ctx context.Context,
	run *store.Run,
) error {
	srd, err := rq.runData.GetStackRunData(ctx, run.RunStackID)
	if err != nil {
		rq.outputCh <- fmt.Sprintf("err getting stack/builder: %+v\n", err)
		return err
	}
	workdir := time.Now().UTC().Format(internal.RunDirLayout)

	run.Status = store.StatusRunning
	startedOn := time.Now().UTC()

	if err := rq.runData.UpdateRunStartedOn(
		context.Background(),
		run.RunID,
		workdir,
		run.Status,
		&startedOn,
	); err != nil {
		rq.outputCh <- "err updating run started on"
		return err
	}

	// source stage: clone the repository on the builder
	client, err := rq.connectSSH(srd.Builder.Username, srd.Builder.Hostname, srd.Builder.SSHPrivateKey)
	if err != nil {
		rq.outputCh <- "Error connecting through SSH."
		return err
	}
	defer client.Close()

	if err := cloneRepositoryOnBuilder(
		ctx, client,
		cloneURL(srd.Stack.Repository, srd.Stack.ConnectionRef),
		srd.Builder.Workspace, workdir, run.Branch,
	); err != nil {
		rq.outputCh <- "err cloning repository on builder"
		return err
	}
	rq.outputCh <- fmt.Sprintf("Cloned repository %s\n", srd.Stack.Repository)

	pf, err := readPipelineFile(client, srd.Builder.Workspace, workdir, srd.Stack.Repository)
	if err != nil {
		rq.outputCh <- "err reading pipeline file"
		return err
	}
	if pf.Build.Image == "" {
		pf.Build.Image = srd.Stack.BuildImage
	}

	rq.outputCh <- "Parsed pipeline file. Starting build...\n"

	artifactKey, err := rq.runStages(
		ctx,
		run.RunID,
		func(ctx context.Context) error {
			return rq.executeBuild(ctx, client, srd, workdir, pf)
		},
		func(ctx context.Context) (string, error) {
			return rq.deploySite(ctx, client, srd, run, workdir, pf)
		},
	)
	if err != nil {
		return err
	}
	run.ArtifactKey = &artifactKey

	passMessage := `
=============================================
PASS || Site built and deployed successfully.
=============================================
`
	rq.outputCh <- passMessage

	run.Status = store.StatusPassed
	run.EndedOn = util.AsPtr(time.Now().UTC())
	if err := rq.runData.UpdateRunEndedOn(
		context.Background(),
		run.RunID,
		run.Status,
		run.ArtifactKey,
		run.EndedOn,
	); err != nil {
		rq.outputCh <- "err updating run ended on"
		return err
	}

	return nil
}

func (rq *RunQueue) connectSSH(username, hostname string, privateKey []byte) (*ssh.Client, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		rq.outputCh <- "err parsing ssh private key"
		return nil, err
	}
	auth := ssh.PublicKeys(signer)
	cc := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	split := strings.Split(hostname, ":")
	if len(split) == 1 {
		hostname += ":22"
	}
	client, err := ssh.Dial("tcp", hostname, cc)
	if err != nil {
		rq.outputCh <- "err dialing ssh"
		return nil, err
	}

	rq.outputCh <- fmt.Sprintf("SSH connected to %s\n", hostname)
	return client, nil
}

func repositoryDir(repository string) string {
	repoDir := repository[strings.LastIndex(repository, "/")+1:]
	return strings.TrimSuffix(repoDir, ".git")
}

func readPipelineFile(
	client *ssh.Client,
	workspace, workdir, repository string,
) (*types.PipelineFile, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	output, err := sess.Output(fmt.Sprintf(
		"cd %s && cd %s && cd %s && cat %s",
		workspace, workdir, repositoryDir(repository), internal.PipelineFileName,
	))
	if err != nil {
		return nil, err
	}
	pf := new(types.PipelineFile)
	if err := yaml.Unmarshal(output, pf); err != nil {
		return nil, err
	}
	pf.ApplyDefaults()
	return pf, nil
}

// cloneURL builds the remote for a stack's repository identifier. The
// decrypted connection reference rides in the URL userinfo so the
// builder can clone private repositories; without one the remote is
// public.
func cloneURL(repository, connectionRef string) string {
	if connectionRef == "" {
		return fmt.Sprintf("https://github.com/%s.git", repository)
	}
	return fmt.Sprintf("https://%s@github.com/%s.git", connectionRef, repository)
}

func cloneRepositoryOnBuilder(
	ctx context.Context,
	client *ssh.Client,
	remote, workspace, workdir, branch string,
) error {
	if _, _, err := runCommand(
		ctx,
		client,
		fmt.Sprintf("mkdir -p %s/%s", workspace, workdir),
		5*time.Second,
	); err != nil {
		return err
	}
	if _, _, err := runCommandInWorkdir(
		ctx,
		client,
		workspace,
		workdir,
		fmt.Sprintf("git clone -b %s %s", branch, remote),
		60*time.Second,
	); err != nil {
		return err
	}
	return nil
}

// runStages advances a run through its build and deploy stages. The
// deploy stage is never entered unless every build command passed.
func (rq *RunQueue) runStages(
	ctx context.Context,
	runID int64,
	build func(context.Context) error,
	deploy func(context.Context) (string, error),
) (string, error) {
	if err := rq.runData.UpdateRunStage(
		context.Background(), runID, store.StageBuild, util.AsPtr(time.Now().UTC()),
	); err != nil {
		return "", err
	}
	if err := build(ctx); err != nil {
		rq.outputCh <- fmt.Sprintf("err executing build: %+v\n", err)
		return "", err
	}

	if err := rq.runData.UpdateRunStage(
		context.Background(), runID, store.StageDeploy, util.AsPtr(time.Now().UTC()),
	); err != nil {
		return "", err
	}
	artifactKey, err := deploy(ctx)
	if err != nil {
		rq.outputCh <- fmt.Sprintf("err deploying site: %+v\n", err)
		return "", err
	}
	return artifactKey, nil
}

// executeBuild runs every build command inside the configured container
// image on the builder, then bundles the output directory. The whole
// stage shares one timeout from the pipeline file.
func (rq *RunQueue) executeBuild(
	ctx context.Context,
	client *ssh.Client,
	srd *StackRunData,
	workdir string,
	pf *types.PipelineFile,
) error {
	repoDir := repositoryDir(srd.Stack.Repository)
	timeout := time.Duration(pf.Build.TimeoutSeconds) * time.Second
	buildCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, command := range pf.Build.Commands {
		rq.outputCh <- fmt.Sprintf("  |  Executing build command '%s'\n", command)
		containerCmd := fmt.Sprintf(
			"docker run --rm -v $(pwd):/workspace -w /workspace %s sh -c %q",
			pf.Build.Image, command,
		)
		if err := rq.executeBuildCommand(
			buildCtx, ctx, client, srd.Builder.Workspace, workdir, repoDir, containerCmd,
		); err != nil {
			if buildCtx.Err() != nil && ctx.Err() == nil {
				return fmt.Errorf(
					"build timed out after %d seconds", pf.Build.TimeoutSeconds,
				)
			}
			return err
		}
	}

	if _, _, err := runCommandInWorkdir(
		buildCtx,
		client,
		srd.Builder.Workspace,
		workdir,
		fmt.Sprintf("cd %s && zip -qr ../%s %s", repoDir, siteBundleName, pf.Build.OutputDir),
		60*time.Second,
	); err != nil {
		return fmt.Errorf("err bundling build output %s: %w", pf.Build.OutputDir, err)
	}
	rq.outputCh <- fmt.Sprintf("Bundled build output from %s\n", pf.Build.OutputDir)
	return nil
}

const siteBundleName = "site_bundle.zip"

func (rq *RunQueue) executeBuildCommand(
	buildCtx, runCtx context.Context,
	client *ssh.Client,
	workspace, workdir, repoDir, command string,
) error {
	sess, err := client.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return err
	}

	doneCh := make(chan error, 1)
	go func() {
		cmd := fmt.Sprintf("cd %s && cd %s && cd %s && %s", workspace, workdir, repoDir, command)
		if err := sess.Start(cmd); err != nil {
			doneCh <- errors.Join(fmt.Errorf("err starting command %s", cmd), err)
			return
		}

		var wg sync.WaitGroup
		wg.Go(func() {
			scanner := bufio.NewScanner(stdout)
			for scanner.Scan() {
				rq.outputCh <- scanner.Text() + "\n"
			}
		})
		wg.Go(func() {
			scanner := bufio.NewScanner(stderr)
			for scanner.Scan() {
				rq.outputCh <- scanner.Text() + "\n"
			}
		})

		if err := sess.Wait(); err != nil {
			doneCh <- errors.Join(fmt.Errorf("err waiting for command to finish %s", cmd), err)
			return
		}

		wg.Wait()
		doneCh <- nil
	}()

	select {
	case <-buildCtx.Done():
		sess.Signal(ssh.SIGINT)
		if runCtx.Err() != nil {
			message := "run cancelled by user"
			rq.outputCh <- message
			return RunCancelError{Message: message}
		}
		message := "build command timed out"
		rq.outputCh <- message
		return fmt.Errorf("%s: '%s'", message, command)
	case err := <-doneCh:
		return err
	}
}

// deploySite fetches the build bundle from the builder, extracts it and
// uploads every file into the stack's bucket, then invalidates the
// distribution so the new content is served immediately.
func (rq *RunQueue) deploySite(
	ctx context.Context,
	client *ssh.Client,
	srd *StackRunData,
	run *store.Run,
	workdir string,
	pf *types.PipelineFile,
) (string, error) {
	runDir := filepath.Join("runs", fmt.Sprintf("%d", run.RunID))
	if err := os.MkdirAll(runDir, os.ModePerm); err != nil {
		return "", err
	}
	bundlePath := filepath.Join(runDir, siteBundleName)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return "", err
	}
	defer sftpClient.Close()

	remotePath := path.Join(srd.Builder.Workspace, workdir, siteBundleName)
	if err := downloadFile(sftpClient, remotePath, bundlePath); err != nil {
		return "", fmt.Errorf("err fetching bundle %s: %w", remotePath, err)
	}
	rq.outputCh <- "Fetched build bundle from builder\n"

	siteDir := filepath.Join(runDir, "site")
	files, err := util.ExtractArchive(bundlePath, siteDir)
	if err != nil {
		return "", err
	}

	prefix := strings.Trim(pf.Deploy.Prefix, "/")
	outputDir := filepath.Join(siteDir, pf.Build.OutputDir)
	for _, f := range files {
		key, err := siteObjectKey(outputDir, prefix, f)
		if err != nil {
			return "", err
		}
		if err := rq.uploadSiteFile(ctx, srd.Stack.BucketName, key, f); err != nil {
			return "", err
		}
		rq.outputCh <- fmt.Sprintf("  |  Uploaded %s\n", key)
	}
	rq.outputCh <- fmt.Sprintf("Uploaded %d files to %s\n", len(files), srd.Stack.BucketName)

	if srd.Stack.DistributionID != nil {
		if err := rq.invalidator.Invalidate(
			ctx,
			*srd.Stack.DistributionID,
			[]string{"/*"},
			rq.uuidGenerator.GenerateUUID(),
		); err != nil {
			return "", fmt.Errorf("err invalidating distribution: %w", err)
		}
		rq.outputCh <- "Invalidated distribution cache\n"
	}

	return bundlePath, nil
}

// siteObjectKey maps an extracted file to its bucket key: the file's
// path relative to the build output directory, slash-separated, under
// the deploy prefix. Files outside the output directory are rejected.
func siteObjectKey(outputDir, prefix, file string) (string, error) {
	rel, err := filepath.Rel(outputDir, file)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file %s is outside build output directory %s", file, outputDir)
	}
	return path.Join(prefix, filepath.ToSlash(rel)), nil
}

func (rq *RunQueue) uploadSiteFile(ctx context.Context, bucket, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return rq.uploader.UploadFile(ctx, bucket, key, f)
}

func downloadFile(sftpClient *sftp.Client, remotePath, localPath string) error {
	remoteFile, err := sftpClient.Open(remotePath)
	if err != nil {
		return err
	}
	defer remoteFile.Close()

	localFile, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer localFile.Close()

	if _, err := io.Copy(localFile, remoteFile); err != nil {
		return err
	}

	return nil
}

func runCommandInWorkdir(
	ctx context.Context,
	client *ssh.Client,
	workspace, workdir, command string,
	timeout time.Duration,
) (string, string, error) {
	cmd := fmt.Sprintf(
		"cd %s && cd %s && %s",
		workspace,
		workdir,
		command,
	)
	return runCommand(ctx, client, cmd, timeout)
}

func runCommand(
	ctx context.Context,
	client *ssh.Client,
	command string,
	timeout time.Duration,
) (string, string, error) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	sess, err := client.NewSession()
	if err != nil {
		return "", "", err
	}
	defer sess.Close()
	sess.Stdout = stdout
	sess.Stderr = stderr

	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	doneCh := make(chan error, 1)

	go func() {
		doneCh <- sess.Run(command)
	}()

	select {
	case <-ctxTimeout.Done():
		if ctx.Err() != nil {
			sess.Signal(ssh.SIGINT)
			return "", "", RunCancelError{
				Message: fmt.Sprintf("command '%s' was cancelled by user", command),
			}
		}
		return "", "", fmt.Errorf(
			"command '%s' timeout after %d seconds",
			command,
			int(timeout.Seconds()),
		)
	case err := <-doneCh:
		if err != nil {
			return "", "", errors.Join(err, fmt.Errorf("stderr: %s", stderr.String()))
		}
		return stdout.String(), stderr.String(), nil
	}
}
