package swarm

import (
	"context"
	"strings"

	"github.com/distribution/reference"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	srerr "github.com/fluxcd/servicereload/pkg/errors"
	"github.com/fluxcd/servicereload/pkg/run"
)

type PullResult int

const (
	PullUnknown PullResult = iota
	PullUpToDate
	PullDownloaded
)

func (r PullResult) String() string {
	switch r {
	case PullUpToDate:
		return "up to date"
	case PullDownloaded:
		return "downloaded"
	default:
		return "unknown"
	}
}

// PullClassifier reads the textual response to a pull of image. It is
// the only place that knows what the orchestrator's messages look
// like.
type PullClassifier interface {
	Classify(image string, out run.Output) PullResult
}

// MarkerClassifier looks for a line in stdout ending with one of its
// markers followed by the image name.
type MarkerClassifier struct {
	UpToDate   string
	Downloaded string
}

var DockerPullClassifier = MarkerClassifier{
	UpToDate:   "Image is up to date for ",
	Downloaded: "Downloaded newer image for ",
}

func (m MarkerClassifier) Classify(image string, out run.Output) PullResult {
	names := imageNames(image)
	lines := strings.Split(out.Stdout, "\n")
	has := func(marker string) bool {
		for _, line := range lines {
			line = strings.TrimSpace(line)
			for _, name := range names {
				if strings.HasSuffix(line, marker+name) {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has(m.UpToDate):
		return PullUpToDate
	case has(m.Downloaded):
		return PullDownloaded
	}
	return PullUnknown
}

// imageNames gives the ways docker may spell image when reporting on
// it: as given, and with the default tag filled in, in both familiar
// and fully qualified form.
func imageNames(image string) []string {
	names := []string{image}
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return names
	}
	tagged := reference.TagNameOnly(named)
	for _, n := range []string{reference.FamiliarString(tagged), tagged.String()} {
		if n != image {
			names = append(names, n)
		}
	}
	return names
}

func parseImage(image string) (reference.Named, error) {
	if image == "" {
		return nil, srerr.ErrEmptyImage
	}
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid image reference %q", image)
	}
	return named, nil
}

// PullIfNewer pulls image and reports whether a newer image than the
// one held locally was downloaded.
func (c *Swarm) PullIfNewer(ctx context.Context, image string) (bool, error) {
	named, err := parseImage(image)
	if err != nil {
		return false, srerr.PullError(image, err)
	}
	host := reference.Domain(named)
	logger := log.With(c.logger, "image", image)

	if c.limiters != nil {
		if err := c.limiters.Wait(ctx, host); err != nil {
			return false, srerr.PullError(image, err)
		}
	}

	level.Debug(logger).Log("msg", "checking for new image")
	out, err := c.exec(ctx, "pull", run.Cmd{Args: []string{"pull", image}})
	if err != nil {
		if c.limiters != nil && tooManyRequests(out.Stderr) {
			c.limiters.BackOff(host)
		}
		return false, srerr.PullError(image, errors.Wrap(err, "cannot pull image"))
	}
	if c.limiters != nil {
		c.limiters.Recover(host)
	}

	switch c.classifier.Classify(image, out) {
	case PullUpToDate:
		level.Debug(logger).Log("msg", "no new image")
		return false, nil
	case PullDownloaded:
		level.Info(logger).Log("msg", "downloaded newer image")
		return true, nil
	}
	level.Warn(logger).Log("msg", "unrecognised pull response", "stdout", strings.TrimSpace(out.Stdout), "stderr", strings.TrimSpace(out.Stderr))
	return false, srerr.PullError(image, srerr.ErrUnknownPullResponse)
}
