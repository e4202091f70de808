// Package cudaext builds interpreter extension modules whose sources mix
// GPU kernels with ordinary native code.
//
// Every source of the module is compiled by one of two backends:
//   - device - the GPU toolkit compiler (nvcc) for .cu kernel sources
//   - host - the native C/C++ compiler for host sources and the binding
//     source that exposes the module to the interpreter
//
// The objects are then linked by the host linker into a single loadable
// module.
//
// # Basic Usage
//
//	toolkit, err := cudaext.Locate(cudaext.LocateOptions{})
//	if err != nil {
//	    return err // ErrToolkitNotFound or ErrToolkitIncomplete
//	}
//
//	plan, err := cudaext.NewBuildPlan(cudaext.PlanSpec{
//	    Name:           "pose_estimation",
//	    BindingSources: []string{"src/model_base_ransac_estimation.pyx"},
//	    DeviceSources:  []string{"cuda/evaluate_gpu.cu"},
//	    HostSources:    []string{"src/pose_estimator.cpp", "src/shader.cpp", "src/Mesh.cpp"},
//	    Libraries:      []string{"assimp", "glfw", "GLEW"},
//	    HostArgs:       cudaext.DefaultHostArgs(),
//	    DeviceArgs:     cudaext.DefaultDeviceArgs(),
//	}, toolkit)
//
//	executor, err := cudaext.NewBuildExecutor(toolkit, plan, &cudaext.BuildConfig{
//	    BuildDir: "build",
//	})
//	result, err := executor.Build(ctx)
//
// # Architecture
//
//	Locate ──> ToolkitConfig
//	              │
//	NewBuildPlan ─┴─> BuildPlan
//	                     │
//	BuildExecutor ───────┴─> CompilerDispatcher ──> Runner (os/exec)
//	  ├── BindingGenerator (.pyx -> .cpp)
//	  └── link (host linker)
//
// The dispatcher resolves the executable and argument list per source and
// hands them to the Runner as an explicit Invocation. No compiler setting is
// shared between compilations.
//
// BuildExecutor.Commands returns the same invocations Build would run
// without running them. The cudaext command uses it for `plan` and for
// writing compile_commands.json.
//
// # Platform Support
//
// Linux is the primary target. macOS and Windows use their conventional
// toolkit library directory names and module suffixes.
package cudaext
