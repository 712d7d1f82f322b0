package transcribe

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	img "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"

	"github.com/dsmilne3/ai-video-analyzer/internal/transcript"
)

const (
	audioMount  = "/audio"
	helperImage = "alpine:3.20"
)

type DockerConfig struct {
	Image     string        `yaml:"image"`
	Model     string        `yaml:"model"`
	Language  string        `yaml:"language"`
	Translate bool          `yaml:"translate"`
	MemoryMB  int64         `yaml:"memory_mb"`
	CPUs      float64       `yaml:"cpus"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Docker runs Whisper in a container with networking disabled, so the image
// must ship its model. Requires DOCKER_HOST or a local daemon.
type Docker struct {
	cfg DockerConfig
	log zerolog.Logger
}

func NewDocker(cfg DockerConfig, logger zerolog.Logger) *Docker {
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Minute
	}
	return &Docker{cfg: cfg, log: logger.With().Str("component", "transcribe.docker").Logger()}
}

// Command builds the shell command run inside the Whisper container. The
// JSON document is printed to stdout.
func (d *Docker) Command(audioFile string) []string {
	args := []string{"whisper", audioMount + "/" + audioFile,
		"--model", d.cfg.Model,
		"--output_format", "json",
		"--output_dir", audioMount + "/out",
		"--word_timestamps", "True",
		"--fp16", "False",
	}
	if d.cfg.Language != "" {
		args = append(args, "--language", d.cfg.Language)
	}
	if d.cfg.Translate {
		args = append(args, "--task", "translate")
	}
	base := strings.TrimSuffix(audioFile, filepath.Ext(audioFile))
	script := fmt.Sprintf("%s >/dev/null && cat %s/out/%s.json", strings.Join(args, " "), audioMount, base)
	return []string{"sh", "-c", script}
}

func (d *Docker) Transcribe(ctx context.Context, audioPath string) (*transcript.Transcript, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	defer cli.Close()

	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("cannot reach docker daemon (%s): %w", os.Getenv("DOCKER_HOST"), err)
	}

	phaseCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	for _, image := range []string{helperImage, d.cfg.Image} {
		if err := pullIfNeeded(phaseCtx, cli, image); err != nil {
			return nil, fmt.Errorf("pull %s: %w", image, err)
		}
	}

	volName := fmt.Sprintf("demoeval-audio-%d", time.Now().UnixNano())
	if _, err := cli.VolumeCreate(phaseCtx, volume.CreateOptions{Name: volName}); err != nil {
		return nil, fmt.Errorf("volume create: %w", err)
	}
	defer func() {
		if err := cli.VolumeRemove(context.Background(), volName, true); err != nil {
			d.log.Warn().Err(err).Str("volume", volName).Msg("remove volume")
		}
	}()

	name := "input" + filepath.Ext(audioPath)
	if err := copyBytesToVolume(phaseCtx, cli, volName, name, data); err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}

	d.log.Info().Str("image", d.cfg.Image).Str("model", d.cfg.Model).Int("bytes", len(data)).Msg("running whisper")
	res := &container.Resources{}
	if d.cfg.MemoryMB > 0 {
		res.Memory = d.cfg.MemoryMB << 20
	}
	if d.cfg.CPUs > 0 {
		res.NanoCPUs = int64(d.cfg.CPUs * 1e9)
	}
	stdout, stderr, exitCode, err := runWithLogs(phaseCtx, cli, d.cfg.Image, volName, d.Command(name), res)
	if err != nil {
		return nil, fmt.Errorf("whisper run: %w", err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("whisper exit code=%d\nstderr:\n%s", exitCode, stderr)
	}
	t, err := ParseWhisperJSON(stdout)
	if err != nil {
		return nil, err
	}
	d.log.Info().Int("segments", len(t.Segments)).Str("language", t.Language).Msg("transcribed")
	return t, nil
}

func pullIfNeeded(ctx context.Context, cli *client.Client, image string) error {
	if _, _, err := cli.ImageInspectWithRaw(ctx, image); err == nil {
		return nil
	}
	reader, err := cli.ImagePull(ctx, imageRef(image), img.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader) // progress stream
	return nil
}

func imageRef(img string) string {
	if strings.Contains(img, "/") || strings.Contains(img, ":") {
		return img
	}
	return "docker.io/library/" + img + ":latest"
}

// runWithLogs runs cmd in image with the audio volume mounted and no network,
// then returns the demultiplexed logs.
func runWithLogs(ctx context.Context, cli *client.Client, image, volName string, cmd []string, res *container.Resources) (stdout, stderr string, exitCode int, err error) {
	hostCfg := &container.HostConfig{
		NetworkMode: container.NetworkMode("none"),
		Mounts: []mount.Mount{{
			Type:   mount.TypeVolume,
			Source: volName,
			Target: audioMount,
		}},
	}
	if res != nil {
		hostCfg.Resources = *res
	}

	create, err := cli.ContainerCreate(ctx, &container.Config{
		Image: image,
		Cmd:   cmd,
		Tty:   false,
	}, hostCfg, nil, nil, "")
	if err != nil {
		return "", "", 0, fmt.Errorf("create: %w", err)
	}
	cid := create.ID
	defer func() {
		timeout := 5
		_ = cli.ContainerStop(context.Background(), cid, container.StopOptions{Timeout: &timeout})
		_ = cli.ContainerRemove(context.Background(), cid, container.RemoveOptions{Force: true})
	}()

	if err := cli.ContainerStart(ctx, cid, container.StartOptions{}); err != nil {
		return "", "", 0, fmt.Errorf("start: %w", err)
	}

	statusCh, errCh := cli.ContainerWait(ctx, cid, container.WaitConditionNotRunning)
	select {
	case err = <-errCh:
		if err != nil {
			return "", "", 0, fmt.Errorf("wait: %w", err)
		}
	case st := <-statusCh:
		exitCode = int(st.StatusCode)
	}

	var outBuf, errBuf bytes.Buffer
	logs, err := cli.ContainerLogs(ctx, cid, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", exitCode, fmt.Errorf("logs: %w", err)
	}
	defer logs.Close()
	if _, err := stdcopy.StdCopy(&outBuf, &errBuf, logs); err != nil {
		return "", "", exitCode, fmt.Errorf("demux logs: %w", err)
	}
	return outBuf.String(), errBuf.String(), exitCode, nil
}

// copyBytesToVolume writes one file into the volume through a helper
// container and the archive upload API.
func copyBytesToVolume(ctx context.Context, cli *client.Client, volName, name string, data []byte) error {
	create, err := cli.ContainerCreate(ctx, &container.Config{
		Image: helperImage,
		Cmd:   []string{"sleep", "60"},
		Tty:   false,
	}, &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeVolume,
			Source: volName,
			Target: audioMount,
		}},
	}, nil, nil, "")
	if err != nil {
		return fmt.Errorf("copy helper create: %w", err)
	}
	cid := create.ID
	defer func() {
		timeout := 2
		_ = cli.ContainerStop(context.Background(), cid, container.StopOptions{Timeout: &timeout})
		_ = cli.ContainerRemove(context.Background(), cid, container.RemoveOptions{Force: true})
	}()

	if err := cli.ContainerStart(ctx, cid, container.StartOptions{}); err != nil {
		return fmt.Errorf("copy helper start: %w", err)
	}

	tarBuf := new(bytes.Buffer)
	tw := tar.NewWriter(tarBuf)
	if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(data))}); err != nil {
		return err
	}
	if _, err := tw.Write(data); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return cli.CopyToContainer(ctx, cid, audioMount, tarBuf, container.CopyToContainerOptions{AllowOverwriteDirWithFile: true})
}
