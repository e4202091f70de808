package cudaext

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func poseSpec() PlanSpec {
	return PlanSpec{
		Name:           "pose_estimation",
		BindingSources: []string{"src/model_base_ransac_estimation.pyx"},
		DeviceSources:  []string{"cuda/evaluate_gpu.cu"},
		HostSources: []string{
			"src/pose_estimator.cpp",
			"src/shader.cpp",
			"src/Mesh.cpp",
		},
		NumericIncludeDirs:       []string{"/numpy/core/include"},
		LinearAlgebraIncludeDirs: []string{"/usr/include/eigen3"},
		ProjectIncludeDirs:       []string{"src"},
		Libraries:                []string{"assimp", "glfw", "GLEW"},
		HostArgs:                 DefaultHostArgs(),
		DeviceArgs:               DefaultDeviceArgs(),
	}
}

func TestNewBuildPlanOrdersSources(t *testing.T) {
	toolkit := newFakeToolkit(t)

	plan, err := NewBuildPlan(poseSpec(), toolkit)
	require.NoError(t, err)

	want := []Source{
		{Path: "src/model_base_ransac_estimation.pyx", Kind: KindBinding},
		{Path: "cuda/evaluate_gpu.cu", Kind: KindDevice},
		{Path: "src/pose_estimator.cpp", Kind: KindHost},
		{Path: "src/shader.cpp", Kind: KindHost},
		{Path: "src/Mesh.cpp", Kind: KindHost},
	}
	if diff := cmp.Diff(want, plan.Sources()); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "pose_estimation", plan.Name())
}

func TestNewBuildPlanMergesIncludeDirs(t *testing.T) {
	toolkit := newFakeToolkit(t)
	spec := poseSpec()
	spec.InterpreterIncludeDirs = []string{"/usr/include/python3.12"}
	spec.ProjectIncludeDirs = []string{"src", "/usr/include/eigen3", "cuda"}

	plan, err := NewBuildPlan(spec, toolkit)
	require.NoError(t, err)

	want := []string{
		"/numpy/core/include",
		"/usr/include/python3.12",
		"/usr/include/eigen3",
		toolkit.IncludeDir(),
		"src",
		"cuda",
	}
	if diff := cmp.Diff(want, plan.IncludeDirs()); diff != "" {
		t.Errorf("include dirs mismatch (-want +got):\n%s", diff)
	}
}

func TestNewBuildPlanLibraries(t *testing.T) {
	toolkit := newFakeToolkit(t)
	spec := poseSpec()
	spec.Libraries = append(spec.Libraries, "cudart")
	spec.LibraryDirs = []string{"/opt/assimp/lib"}

	plan, err := NewBuildPlan(spec, toolkit)
	require.NoError(t, err)

	require.Equal(t, []string{"cudart", "assimp", "glfw", "GLEW"}, plan.Libraries())
	require.Equal(t, []string{toolkit.LibDir(), "/opt/assimp/lib"}, plan.LibraryDirs())

	spec.DeviceRuntimeLibrary = "cudart_static"
	plan, err = NewBuildPlan(spec, toolkit)
	require.NoError(t, err)
	require.Equal(t, "cudart_static", plan.Libraries()[0])
}

func TestBuildPlanArgsAreIndependent(t *testing.T) {
	toolkit := newFakeToolkit(t)
	spec := poseSpec()

	plan, err := NewBuildPlan(spec, toolkit)
	require.NoError(t, err)

	require.Equal(t, DefaultHostArgs(), plan.BackendArgs(BackendHost))
	require.Equal(t, DefaultDeviceArgs(), plan.BackendArgs(BackendDevice))
	require.Empty(t, plan.BackendArgs(Backend("other")))

	// Mutating the spec or a returned slice must not reach the plan
	spec.HostArgs[0] = "-E"
	host := plan.BackendArgs(BackendHost)
	host[1] = "-O0"
	sources := plan.Sources()
	sources[0].Path = "changed.pyx"

	require.Equal(t, DefaultHostArgs(), plan.BackendArgs(BackendHost))
	require.Equal(t, "src/model_base_ransac_estimation.pyx", plan.Sources()[0].Path)
}

func TestNewBuildPlanErrors(t *testing.T) {
	toolkit := newFakeToolkit(t)

	testCases := []struct {
		name    string
		spec    PlanSpec
		toolkit *ToolkitConfig
		target  error
	}{
		{
			name:    "nil toolkit",
			spec:    poseSpec(),
			toolkit: nil,
			target:  ErrNotConfigured,
		},
		{
			name:    "unknown extension",
			spec:    PlanSpec{Name: "ext", HostSources: []string{"src/kernel.f90"}},
			toolkit: toolkit,
			target:  ErrUnknownSourceType,
		},
		{
			name:    "unknown extension among host sources",
			spec:    PlanSpec{Name: "ext", HostSources: []string{"main.cpp", "notes.txt"}},
			toolkit: toolkit,
			target:  ErrUnknownSourceType,
		},
		{
			name:    "binding and host source share a stem",
			spec:    PlanSpec{Name: "ext", BindingSources: []string{"src/model.pyx"}, HostSources: []string{"src/model.cpp"}},
			toolkit: toolkit,
			target:  ErrObjectCollision,
		},
		{
			name:    "parent reference collides after cleaning",
			spec:    PlanSpec{Name: "ext", HostSources: []string{"x.cpp", "../x.cpp"}},
			toolkit: toolkit,
			target:  ErrObjectCollision,
		},
		{
			name:    "source listed twice",
			spec:    PlanSpec{Name: "ext", HostSources: []string{"a.cpp", "a.cpp"}},
			toolkit: toolkit,
			target:  ErrObjectCollision,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBuildPlan(tc.spec, tc.toolkit)
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.target), "expected %v, got %v", tc.target, err)
		})
	}

	_, err := NewBuildPlan(PlanSpec{HostSources: []string{"a.cpp"}}, toolkit)
	require.Error(t, err)

	_, err = NewBuildPlan(PlanSpec{Name: "empty"}, toolkit)
	require.Error(t, err)
}

func TestKindOf(t *testing.T) {
	testCases := []struct {
		path string
		want SourceKind
	}{
		{"cuda/evaluate_gpu.cu", KindDevice},
		{"src/model.pyx", KindBinding},
		{"src/pose_estimator.cpp", KindHost},
		{"src/legacy.c", KindHost},
		{"src/Mesh.C", KindHost},
		{"src/kernel.cuh", KindUnknown},
		{"Makefile", KindUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			if got := KindOf(tc.path); got != tc.want {
				t.Errorf("KindOf(%s) = %v, expected %v", tc.path, got, tc.want)
			}
		})
	}
}
