// CI pipeline for the forms service
//
// Runs the test suite, builds the server and formsctl binaries for linux
// amd64/arm64 and publishes a multi-platform image of the server.

package main

import (
	"context"
	"dagger/aiforms/internal/dagger"
	"fmt"
)

type Aiforms struct{}

func (m *Aiforms) GoBuildEnv(source *dagger.Directory) *dagger.Container {
	goCache := dag.CacheVolume("go")
	return dag.Container().
		From("golang:alpine").
		WithDirectory("/src", source).
		WithWorkdir("/src").
		WithEnvVariable("GOOS", "linux").
		WithEnvVariable("CGO_ENABLED", "0").
		WithMountedCache("/go/pkg/mod", goCache).
		WithExec([]string{"go", "mod", "download"})
}

// Test runs go vet and the unit tests
func (m *Aiforms) Test(ctx context.Context, source *dagger.Directory) (string, error) {
	return m.GoBuildEnv(source).
		WithExec([]string{"go", "vet", "./..."}).
		WithExec([]string{"go", "test", "-count=1", "./..."}).
		Stdout(ctx)
}

func (m *Aiforms) BackEnv(platform dagger.Platform, appBin *dagger.File, cliBin *dagger.File) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{
		Platform: platform,
	}).
		From("alpine").
		WithEnvVariable("TZ", "Europe/Moscow").
		WithExec([]string{"apk", "add", "--no-cache", "curl", "tzdata"}).
		WithWorkdir("/app").
		WithFile("/app/app", appBin).
		WithFile("/usr/local/bin/formsctl", cliBin).
		WithEnvVariable("SESSIONS_DB_PATH", "/app/data/sessions.db").
		WithExposedPort(8080).
		WithExposedPort(2112).
		WithEntrypoint([]string{"/app/app"})
}

func (m *Aiforms) Build(version string, source *dagger.Directory) []*dagger.Container {
	buildMatrix := []struct {
		Arch     string
		Platform dagger.Platform
	}{
		{Arch: "amd64", Platform: dagger.Platform("linux/amd64")},
		{Arch: "arm64", Platform: dagger.Platform("linux/arm64/v8")},
	}

	ldflags := fmt.Sprintf("-s -w -X main.version=%s", version)

	var images []*dagger.Container
	for _, buildParam := range buildMatrix {
		appBin := "/build/aiforms-linux-" + buildParam.Arch
		cliBin := "/build/formsctl-linux-" + buildParam.Arch

		builder := m.GoBuildEnv(source).
			WithEnvVariable("GOARCH", buildParam.Arch).
			WithExec([]string{"go", "build", "-o", appBin, "-ldflags", ldflags, "./cmd/aiforms"}).
			WithExec([]string{"go", "build", "-o", cliBin, "-ldflags", ldflags, "./cmd/formsctl"})

		image := m.BackEnv(buildParam.Platform, builder.File(appBin), builder.File(cliBin)).
			WithLabel("org.opencontainers.image.source", "https://github.com/aisa-it/aiforms").
			WithAnnotation("org.opencontainers.image.source", "https://github.com/aisa-it/aiforms")
		images = append(images, image)
	}
	return images
}

// ErrorsDoc generates the markdown list of API error codes
func (m *Aiforms) ErrorsDoc(source *dagger.Directory) *dagger.File {
	return m.GoBuildEnv(source).
		WithExec([]string{"go", "run", "./cmd/docsgen", "-out", "/build/api_error.md"}).
		File("/build/api_error.md")
}

func (m *Aiforms) Publish(
	ctx context.Context,
	images []*dagger.Container,
	registrySecret *dagger.Secret,
	registryUser string,
	imageName string,
) (string, error) {
	return dag.Container().
		WithRegistryAuth("ghcr.io", registryUser, registrySecret).
		Publish(ctx, "ghcr.io/"+imageName, dagger.ContainerPublishOpts{PlatformVariants: images})
}

func (m *Aiforms) Export(
	ctx context.Context,
	images []*dagger.Container,
	imageName string,
) (string, error) {
	return dag.Container().
		Export(ctx, imageName, dagger.ContainerExportOpts{PlatformVariants: images})
}

func (m *Aiforms) BuildLocal(ctx context.Context, name string, source *dagger.Directory) (string, error) {
	return m.Export(ctx, m.Build("v0.1.0", source), name)
}

func (m *Aiforms) BuildApp(ctx context.Context, version string, source *dagger.Directory,
	registrySecret *dagger.Secret,
	registryUser string,
	imageName string,
) error {
	if _, err := m.Test(ctx, source); err != nil {
		return err
	}

	back := m.Build(version, source)
	for _, tag := range []string{version, "latest"} {
		ref, err := m.Publish(ctx, back, registrySecret, registryUser, fmt.Sprintf("%s:%s", imageName, tag))
		if err != nil {
			return err
		}
		fmt.Println(ref)
	}
	return nil
}
