package service

import (
	"context"
	"strings"
	"time"

	"github.com/sitepipe/sitepipe/internal/security"
	"github.com/sitepipe/sitepipe/internal/store"
	"golang.org/x/crypto/ssh"
)

type BuilderServicer interface {
	CreateBuilder(
		ctx context.Context,
		name, hostname, username, workspace string,
		sshPrivateKey []byte,
	) (*store.Builder, error)
	GetBuilderByID(context.Context, int64) (*store.Builder, error)
	ListBuilders(context.Context) ([]*store.Builder, error)
	UpdateBuilder(
		ctx context.Context,
		builderID int64,
		name, hostname, username, workspace string,
	) error
	DeleteBuilder(context.Context, int64) error

	TestBuilderConnection(context.Context, int64) error
}

type BuilderService struct {
	builderStore store.BuilderStore
	aesEncrypter security.Encrypter
}

func NewBuilderService(s store.BuilderStore, e security.Encrypter) *BuilderService {
	return &BuilderService{builderStore: s, aesEncrypter: e}
}

func (s *BuilderService) CreateBuilder(
	ctx context.Context,
	name, hostname, username, workspace string,
	sshPrivateKey []byte,
) (*store.Builder, error) {
	hash := s.aesEncrypter.EncryptAES(string(sshPrivateKey))
	b, err := s.builderStore.CreateBuilder(ctx, name, hostname, username, workspace, hash)
	return b, err
}

func (s *BuilderService) GetBuilderByID(ctx context.Context, id int64) (*store.Builder, error) {
	b, err := s.builderStore.ReadBuilderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := s.aesEncrypter.DecryptAES(b.SSHPrivateKeyHash)
	if err != nil {
		return nil, err
	}
	b.SSHPrivateKey = key
	return b, nil
}

func (s *BuilderService) ListBuilders(ctx context.Context) ([]*store.Builder, error) {
	return s.builderStore.ListBuilders(ctx)
}

func (s *BuilderService) UpdateBuilder(
	ctx context.Context,
	builderID int64,
	name, hostname, username, workspace string,
) error {
	return s.builderStore.UpdateBuilder(ctx, builderID, name, hostname, username, workspace)
}

func (s *BuilderService) DeleteBuilder(ctx context.Context, builderID int64) error {
	return s.builderStore.DeleteBuilder(ctx, builderID)
}

func (s *BuilderService) TestBuilderConnection(ctx context.Context, builderID int64) error {
	b, err := s.GetBuilderByID(ctx, builderID)
	if err != nil {
		return err
	}

	signer, err := ssh.ParsePrivateKey(b.SSHPrivateKey)
	if err != nil {
		return err
	}
	cc := &ssh.ClientConfig{
		User:            b.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	hostname := b.Hostname
	if len(strings.Split(hostname, ":")) == 1 {
		hostname += ":22"
	}

	client, err := ssh.Dial("tcp", hostname, cc)
	if err != nil {
		return err
	}
	defer client.Close()
	return nil
}
