package cudaext

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, spec PlanSpec, runner Runner) (*CompilerDispatcher, *ToolkitConfig, *BuildPlan) {
	t.Helper()

	toolkit := newFakeToolkit(t)
	plan, err := NewBuildPlan(spec, toolkit)
	require.NoError(t, err)

	d, err := NewCompilerDispatcher(toolkit, plan, DispatcherOptions{
		HostCompiler: Executable{Path: "c++", Flags: []string{"-fPIC"}},
		Runner:       runner,
	})
	require.NoError(t, err)
	return d, toolkit, plan
}

func TestDispatcherRoutesByExtension(t *testing.T) {
	spec := PlanSpec{
		Name:          "mixed",
		DeviceSources: []string{"kernels/a.cu"},
		HostSources:   []string{"src/b.cpp", "src/c.cpp"},
		HostArgs:      DefaultHostArgs(),
		DeviceArgs:    DefaultDeviceArgs(),
	}
	runner := &recordingRunner{}
	d, toolkit, plan := newTestDispatcher(t, spec, runner)
	require.NoError(t, d.RegisterDeviceExtension(DeviceExtension))

	tempDir := t.TempDir()
	for _, src := range plan.Sources() {
		_, err := d.Compile(context.Background(), Compilation{Source: src, Object: ObjectPath(tempDir, src.Path)})
		require.NoError(t, err)
	}

	compiles := runner.steps(StepCompile)
	require.Len(t, compiles, 3)

	var device, host int
	for _, inv := range compiles {
		switch inv.Backend {
		case BackendDevice:
			device++
			require.Equal(t, toolkit.DeviceCompiler(), inv.Executable)
			require.Equal(t, "kernels/a.cu", inv.Source)
			require.Subset(t, inv.Args, DefaultDeviceArgs())
			require.NotContains(t, inv.Args, "-fPIC", "host flags leaked into device invocation")
		case BackendHost:
			host++
			require.Equal(t, "c++", inv.Executable)
			require.Equal(t, "-fPIC", inv.Args[0])
			require.NotContains(t, inv.Args, "-arch=sm_50", "device args leaked into host invocation")
			require.NotContains(t, inv.Args, "--ptxas-options=-v")
		default:
			t.Fatalf("unexpected backend %q", inv.Backend)
		}
	}
	require.Equal(t, 1, device)
	require.Equal(t, 2, host)
}

func TestDispatcherHostRouteUnaffectedByDeviceRoute(t *testing.T) {
	spec := PlanSpec{
		Name:          "mixed",
		DeviceSources: []string{"a.cu"},
		HostSources:   []string{"b.cpp"},
		HostArgs:      DefaultHostArgs(),
		DeviceArgs:    DefaultDeviceArgs(),
	}
	d, _, _ := newTestDispatcher(t, spec, &recordingRunner{})
	require.NoError(t, d.RegisterDeviceExtension(DeviceExtension))

	host := Source{Path: "b.cpp", Kind: KindHost}
	before, err := d.Route(host)
	require.NoError(t, err)

	deviceRoute, err := d.Route(Source{Path: "a.cu", Kind: KindDevice})
	require.NoError(t, err)
	require.Equal(t, BackendDevice, deviceRoute.Backend)

	after, err := d.Route(host)
	require.NoError(t, err)

	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("host route changed after a device route (-before +after):\n%s", diff)
	}
	require.Equal(t, BackendHost, after.Backend)
	require.Equal(t, DefaultHostArgs(), after.Args)
}

func TestDispatcherIsDeterministic(t *testing.T) {
	spec := poseSpec()
	toolkit := newFakeToolkit(t)

	collect := func() []Invocation {
		plan, err := NewBuildPlan(spec, toolkit)
		require.NoError(t, err)
		d, err := NewCompilerDispatcher(toolkit, plan, DispatcherOptions{
			HostCompiler: Executable{Path: "c++"},
			Runner:       &recordingRunner{},
		})
		require.NoError(t, err)
		require.NoError(t, d.RegisterDeviceExtension(DeviceExtension))

		var out []Invocation
		for _, src := range plan.Sources() {
			inv, err := d.Invocation(Compilation{
				Source: src,
				Object: ObjectPath("build/temp", src.Path),
			})
			require.NoError(t, err)
			out = append(out, inv)
		}
		return out
	}

	first := collect()
	second := collect()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("routing differs between runs (-first +second):\n%s", diff)
	}
}

func TestDispatcherInvocationLayout(t *testing.T) {
	spec := PlanSpec{
		Name:               "mixed",
		HostSources:        []string{"src/b.cpp"},
		ProjectIncludeDirs: []string{"src"},
		HostArgs:           []string{"-O3"},
	}
	d, toolkit, _ := newTestDispatcher(t, spec, &recordingRunner{})

	inv, err := d.Invocation(Compilation{
		Source: Source{Path: "src/b.cpp", Kind: KindHost},
		Object: "build/temp/src/b.o",
	})
	require.NoError(t, err)

	want := []string{
		"-fPIC",
		"-I" + toolkit.IncludeDir(),
		"-Isrc",
		"-c", "src/b.cpp", "-o", "build/temp/src/b.o",
		"-O3",
	}
	if diff := cmp.Diff(want, inv.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, StepCompile, inv.Step)
}

func TestDispatcherTranslatedInput(t *testing.T) {
	spec := PlanSpec{
		Name:           "binding",
		BindingSources: []string{"src/model.pyx"},
		HostArgs:       DefaultHostArgs(),
	}
	d, _, _ := newTestDispatcher(t, spec, &recordingRunner{})

	inv, err := d.Invocation(Compilation{
		Source: Source{Path: "src/model.pyx", Kind: KindBinding},
		Input:  "build/temp/src/model.cpp",
		Object: "build/temp/src/model.o",
	})
	require.NoError(t, err)
	require.Equal(t, BackendHost, inv.Backend)
	require.Equal(t, "src/model.pyx", inv.Source)
	require.Contains(t, inv.Args, "build/temp/src/model.cpp")
	require.NotContains(t, inv.Args, "src/model.pyx")
}

func TestDispatcherDeviceExtensionRegistration(t *testing.T) {
	spec := PlanSpec{
		Name:          "mixed",
		DeviceSources: []string{"a.cu"},
		DeviceArgs:    DefaultDeviceArgs(),
	}
	d, _, _ := newTestDispatcher(t, spec, &recordingRunner{})

	require.False(t, d.Recognizes("a.cu"))
	_, err := d.Route(Source{Path: "a.cu", Kind: KindDevice})
	require.True(t, errors.Is(err, ErrUnknownSourceType), "expected ErrUnknownSourceType, got %v", err)

	require.NoError(t, d.RegisterDeviceExtension(DeviceExtension))
	require.True(t, d.Recognizes("a.cu"))

	err = d.RegisterDeviceExtension(DeviceExtension)
	require.True(t, errors.Is(err, ErrAlreadyRegistered), "expected ErrAlreadyRegistered, got %v", err)

	err = d.RegisterDeviceExtension(".cpp")
	require.True(t, errors.Is(err, ErrAlreadyRegistered), "host extensions cannot be taken over")
}

func TestDispatcherCompileFailureKeepsOutput(t *testing.T) {
	diagnostic := "a.cu(12): error: identifier \"foo\" is undefined\n1 error detected\n"
	runner := &recordingRunner{failOn: map[string]string{"a.cu": diagnostic}}

	spec := PlanSpec{Name: "mixed", DeviceSources: []string{"a.cu"}}
	d, _, _ := newTestDispatcher(t, spec, runner)
	require.NoError(t, d.RegisterDeviceExtension(DeviceExtension))

	out, err := d.Compile(context.Background(), Compilation{
		Source: Source{Path: "a.cu", Kind: KindDevice},
		Object: filepath.Join(t.TempDir(), "a.o"),
	})
	require.Error(t, err)
	require.NotNil(t, out)

	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	require.Equal(t, diagnostic, compileErr.Output)
	require.Equal(t, BackendDevice, compileErr.Backend)
	require.Equal(t, "a.cu", compileErr.Source)
	require.Contains(t, err.Error(), "identifier \"foo\" is undefined")
}

func TestNewCompilerDispatcherValidation(t *testing.T) {
	toolkit := newFakeToolkit(t)
	plan, err := NewBuildPlan(PlanSpec{Name: "x", HostSources: []string{"a.cpp"}}, toolkit)
	require.NoError(t, err)

	_, err = NewCompilerDispatcher(nil, plan, DispatcherOptions{HostCompiler: Executable{Path: "c++"}})
	require.True(t, errors.Is(err, ErrNotConfigured))

	_, err = NewCompilerDispatcher(toolkit, nil, DispatcherOptions{HostCompiler: Executable{Path: "c++"}})
	require.Error(t, err)

	_, err = NewCompilerDispatcher(toolkit, plan, DispatcherOptions{})
	require.Error(t, err)
}
