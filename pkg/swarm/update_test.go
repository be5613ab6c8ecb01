package swarm

import (
	"context"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srerr "github.com/fluxcd/servicereload/pkg/errors"
	"github.com/fluxcd/servicereload/pkg/run"
	"github.com/fluxcd/servicereload/pkg/run/mock"
)

func TestForceUpdate(t *testing.T) {
	c, runner := mockSwarm()
	err := c.ForceUpdate(context.Background(), ServiceInfo{Name: "web", Image: "app:1", Enabled: true})
	require.NoError(t, err)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"service", "update", "--force", "--image", "app:1", "--detach", "web"}, calls[0].Args)
}

func TestForceUpdateWithRegistryAuth(t *testing.T) {
	runner := &mock.Runner{}
	c := NewSwarm(runner, log.NewNopLogger(), Options{WithRegistryAuth: true})
	require.NoError(t, c.ForceUpdate(context.Background(), ServiceInfo{Name: "web", Image: "app:1"}))
	assert.Contains(t, runner.Calls()[0].Args, "--with-registry-auth")
}

func TestForceUpdateStderrIsFailure(t *testing.T) {
	c, runner := mockSwarm()
	runner.Respond("service update --force --image app:1 --detach web", run.Output{
		Stdout: "web\n",
		Stderr: "image app:1 could not be accessed on a registry to record its digest",
	}, nil)

	err := c.ForceUpdate(context.Background(), ServiceInfo{Name: "web", Image: "app:1"})
	require.Error(t, err)
	assert.True(t, srerr.Is(err, srerr.Update))
}

func TestForceUpdateEmptyImage(t *testing.T) {
	c, runner := mockSwarm()
	err := c.ForceUpdate(context.Background(), ServiceInfo{Name: "web"})
	assert.True(t, srerr.Is(err, srerr.Update))
	assert.Empty(t, runner.Calls())
}

func TestLogin(t *testing.T) {
	c, runner := mockSwarm()
	err := c.Login(context.Background(), "registry.example.com", "bot", "s3cret")
	require.NoError(t, err)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"login", "--username", "bot", "--password-stdin", "registry.example.com"}, calls[0].Args)
	assert.Equal(t, "s3cret", calls[0].Stdin)
	assert.NotContains(t, calls[0].String(), "s3cret")
}

func TestLoginNoRegistryConfigured(t *testing.T) {
	c, runner := mockSwarm()
	require.NoError(t, c.Login(context.Background(), "", "", ""))
	assert.Equal(t, []string{"login"}, runner.Calls()[0].Args)
}

func TestLoginWarningIsNotFailure(t *testing.T) {
	c, runner := mockSwarm()
	runner.Respond("login --username bot --password-stdin", run.Output{
		Stdout: "Login Succeeded\n",
		Stderr: "WARNING! Your password will be stored unencrypted in /root/.docker/config.json.\n",
	}, nil)
	assert.NoError(t, c.Login(context.Background(), "", "bot", "pw"))
}

func TestLoginFailure(t *testing.T) {
	c, runner := mockSwarm()
	runner.Respond("login --username bot --password-stdin", run.Output{Stderr: "unauthorized: incorrect username or password"}, errors.New("exit status 1"))
	err := c.Login(context.Background(), "", "bot", "pw")
	require.Error(t, err)
	assert.True(t, srerr.IsFatal(err))
}

func TestPrune(t *testing.T) {
	c, runner := mockSwarm()
	require.NoError(t, c.PruneContainers(context.Background()))
	require.NoError(t, c.PruneImages(context.Background()))

	calls := runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "container prune --force", calls[0].String())
	assert.Equal(t, "image prune --force", calls[1].String())
}

func TestPruneFailure(t *testing.T) {
	c, runner := mockSwarm()
	runner.Respond("image prune --force", run.Output{}, errors.New("exit status 1"))
	assert.Error(t, c.PruneImages(context.Background()))
}
