package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/trussopt/internal/config"
	"github.com/san-kum/trussopt/internal/export"
	"github.com/san-kum/trussopt/internal/grid"
	"github.com/san-kum/trussopt/internal/model"
	"github.com/san-kum/trussopt/internal/optimize"
	"github.com/san-kum/trussopt/internal/solver"
	"github.com/san-kum/trussopt/internal/store"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	caseName string
	// grid
	gridWidth  float64
	gridHeight float64
	gridNX     int
	gridNY     int
	loadFy     float64
	// shared run limits
	targetMass float64
	maxIters   int
	maxStress  float64
	force      bool
	material   string
	// energy
	removeFraction float64
	startFactor    float64
	rampIters      int
	// dynamic
	omegaExc float64
	alpha    float64
	nodeMass float64
	// simp
	volumeFraction float64
	penalty        float64
	moveLimit      float64
	// material add
	matEMod    float64
	matArea    float64
	matDensity float64
	matYield   float64
	// config/preset
	configFile string
	preset     string
	// export
	outFile string
)

// main registers commands and flags and executes the root command. It
// exits with status 1 when a command returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:   "trussopt",
		Short: "spring-lattice topology optimization lab",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".trussopt", "data directory")

	optimizeCmd := &cobra.Command{
		Use:   "optimize [energy|dynamic|simp]",
		Short: "optimize a fresh lattice",
		Args:  cobra.ExactArgs(1),
		RunE:  runOptimize,
	}
	optimizeCmd.Flags().StringVar(&caseName, "name", "", "case name")
	optimizeCmd.Flags().Float64Var(&gridWidth, "width", config.DefaultGridExtent, "lattice width in m")
	optimizeCmd.Flags().Float64Var(&gridHeight, "height", config.DefaultGridExtent, "lattice height in m")
	optimizeCmd.Flags().IntVar(&gridNX, "nx", config.DefaultGridNodes, "nodes in x")
	optimizeCmd.Flags().IntVar(&gridNY, "ny", config.DefaultGridNodes, "nodes in y")
	optimizeCmd.Flags().Float64Var(&loadFy, "load", config.DefaultLoadFy, "vertical load in N")
	optimizeCmd.Flags().Float64Var(&targetMass, "target", config.DefaultTargetMass, "target mass fraction")
	optimizeCmd.Flags().IntVar(&maxIters, "iters", config.DefaultMaxIters, "max iterations")
	optimizeCmd.Flags().Float64Var(&maxStress, "max-stress", 0, "stress ceiling in Pa (0 disables)")
	optimizeCmd.Flags().BoolVar(&force, "force", false, "skip stability and stress checks")
	optimizeCmd.Flags().StringVar(&material, "material", "steel", "material name")
	optimizeCmd.Flags().Float64Var(&removeFraction, "remove", config.DefaultRemoveFraction, "removal fraction per iteration")
	optimizeCmd.Flags().Float64Var(&startFactor, "start-factor", config.DefaultStartFactor, "initial ramp factor")
	optimizeCmd.Flags().IntVar(&rampIters, "ramp", config.DefaultRampIters, "ramp-up iterations")
	optimizeCmd.Flags().Float64Var(&omegaExc, "omega", 0, "excitation frequency in rad/s (dynamic)")
	optimizeCmd.Flags().Float64Var(&alpha, "alpha", config.DefaultAlpha, "dynamic blend weight 0..1")
	optimizeCmd.Flags().Float64Var(&nodeMass, "node-mass", 1.0, "fallback lumped node mass in kg")
	optimizeCmd.Flags().Float64Var(&volumeFraction, "volume", config.DefaultSIMPVolume, "volume fraction (simp)")
	optimizeCmd.Flags().Float64Var(&penalty, "penalty", config.DefaultSIMPPenalty, "penalization exponent (simp)")
	optimizeCmd.Flags().Float64Var(&moveLimit, "move-limit", 0.2, "area move limit (simp)")
	optimizeCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	optimizeCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "hyperparameter sweep for the energy optimizer",
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&caseName, "name", "", "case name for the best run")
	sweepCmd.Flags().Float64Var(&gridWidth, "width", config.DefaultGridExtent, "lattice width in m")
	sweepCmd.Flags().Float64Var(&gridHeight, "height", config.DefaultGridExtent, "lattice height in m")
	sweepCmd.Flags().IntVar(&gridNX, "nx", config.DefaultGridNodes, "nodes in x")
	sweepCmd.Flags().IntVar(&gridNY, "ny", config.DefaultGridNodes, "nodes in y")
	sweepCmd.Flags().Float64Var(&loadFy, "load", config.DefaultLoadFy, "vertical load in N")
	sweepCmd.Flags().Float64Var(&targetMass, "target", config.DefaultTargetMass, "target mass fraction")
	sweepCmd.Flags().IntVar(&maxIters, "iters", config.DefaultMaxIters, "max iterations")
	sweepCmd.Flags().StringVar(&material, "material", "steel", "material name")

	rebuildCmd := &cobra.Command{
		Use:   "rebuild [case_id]",
		Short: "reinforce an optimized case around stress hot-spots",
		Args:  cobra.ExactArgs(1),
		RunE:  runRebuild,
	}
	rebuildCmd.Flags().StringVar(&caseName, "name", "", "name for the rebuilt case")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved cases",
		RunE:  listCases,
	}

	showCmd := &cobra.Command{
		Use:   "show [case_id]",
		Short: "show case details",
		Args:  cobra.ExactArgs(1),
		RunE:  showCase,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [case_id]",
		Short: "plot optimization history",
		Args:  cobra.ExactArgs(1),
		RunE:  plotCase,
	}

	exportCmd := &cobra.Command{
		Use:   "export [case_id]",
		Short: "render a case as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCase,
	}
	exportCmd.Flags().StringVar(&outFile, "out", "structure.svg", "output file")

	materialsCmd := &cobra.Command{
		Use:   "materials",
		Short: "list materials",
		RunE:  listMaterials,
	}
	materialAddCmd := &cobra.Command{
		Use:   "add [name]",
		Short: "add a material",
		Args:  cobra.ExactArgs(1),
		RunE:  addMaterial,
	}
	materialAddCmd.Flags().Float64Var(&matEMod, "e-mod", 210e9, "elastic modulus in Pa")
	materialAddCmd.Flags().Float64Var(&matArea, "area", 1e-4, "cross-section area in m^2")
	materialAddCmd.Flags().Float64Var(&matDensity, "density", 7850, "density in kg/m^3")
	materialAddCmd.Flags().Float64Var(&matYield, "yield", 235e6, "yield stress in Pa")
	materialDeleteCmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "delete a saved material",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteMaterial,
	}
	materialsCmd.AddCommand(materialAddCmd, materialDeleteCmd)

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write a default config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], config.DefaultConfig())
		},
	}

	rootCmd.AddCommand(optimizeCmd, sweepCmd, rebuildCmd, listCmd, showCmd, plotCmd, exportCmd, materialsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openMaterials() (*store.MaterialCatalog, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	return store.OpenMaterialCatalog(dataDir + "/materials.yaml")
}

func openCases() (*store.CaseStore, error) {
	cs := store.NewCaseStore(dataDir + "/cases")
	if err := cs.Init(); err != nil {
		return nil, err
	}
	return cs, nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	variant := args[0]

	if preset != "" {
		cfg := config.GetPreset(preset)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		applyConfig(cmd, cfg)
	}
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyConfig(cmd, cfg)
	}

	catalog, err := openMaterials()
	if err != nil {
		return err
	}
	mat, err := catalog.Get(material)
	if err != nil {
		return err
	}

	gridOpts := grid.Options{
		Width: gridWidth, Height: gridHeight,
		NX: gridNX, NY: gridNY, SpringK: 1.0,
	}
	st, err := grid.Generate(gridOpts)
	if err != nil {
		return err
	}
	if err := grid.SimplySupportedBeam(st, gridOpts, loadFy); err != nil {
		return err
	}
	if err := st.UpdateStiffness(mat.EModPa, mat.AreaM2, mat.Density); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	onIter := func(s *model.Structure, iter int, metric float64, removed int) {
		fmt.Printf("iter %3d: removed %3d nodes, %4d active, metric %.4g\n",
			iter, removed, s.ActiveNodeCount(), metric)
	}
	opts := optimize.Options{
		TargetMassFraction: targetMass,
		MaxIters:           maxIters,
		MaxStress:          maxStress,
		Force:              force,
		OnIter:             onIter,
	}
	if maxStress == 0 && mat.YieldPa > 0 && !force {
		opts.MaxStress = mat.YieldPa
	}

	fmt.Printf("optimizing %dx%d lattice (%s, %s)...\n", gridNX, gridNY, variant, mat.Name)
	start := time.Now()

	var history *optimize.History
	switch variant {
	case "energy":
		opt, err := optimize.NewEnergyOptimizer(removeFraction, startFactor, rampIters)
		if err != nil {
			return err
		}
		history, err = opt.Run(ctx, st, opts)
		if err != nil {
			return err
		}
	case "dynamic":
		opt, err := optimize.NewDynamicOptimizer(omegaExc, alpha, removeFraction, nodeMass)
		if err != nil {
			return err
		}
		history, err = opt.Run(ctx, st, opts)
		if err != nil {
			return err
		}
	case "simp":
		opt := optimize.NewSIMPOptimizer(mat.EModPa)
		opt.VolumeFraction = volumeFraction
		opt.Penalty = penalty
		opt.MoveLimit = moveLimit
		history, err = opt.Run(ctx, st, maxIters, onIter)
		if err != nil {
			return err
		}
		removed := opt.PostProcess(st, 0.05)
		if removed > 0 {
			fmt.Printf("post-process removed %d thin springs\n", removed)
		}
	default:
		return fmt.Errorf("unknown optimizer: %s (energy, dynamic, simp)", variant)
	}

	elapsed := time.Since(start)

	cases, err := openCases()
	if err != nil {
		return err
	}
	name := caseName
	if name == "" {
		name = fmt.Sprintf("%s_%dx%d", variant, gridNX, gridNY)
	}
	id, err := cases.Save(name, variant, st, history)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("case id: %s\n", id)
	fmt.Printf("stop reason: %s\n", history.StopReason)
	fmt.Printf("iterations: %d\n", history.Iterations())
	fmt.Printf("nodes removed: %d\n", history.TotalRemoved())
	if n := history.Iterations(); n > 0 && len(history.MassFraction) == n {
		fmt.Printf("final mass fraction: %.3f\n", history.MassFraction[n-1])
	}
	return nil
}

// applyConfig copies config values into the flag variables unless the
// flag was set explicitly on the command line.
func applyConfig(cmd *cobra.Command, cfg *config.Config) {
	set := func(flag string, fn func()) {
		if !cmd.Flags().Changed(flag) {
			fn()
		}
	}
	set("width", func() { gridWidth = cfg.Grid.Width })
	set("height", func() { gridHeight = cfg.Grid.Height })
	set("nx", func() { gridNX = cfg.Grid.NX })
	set("ny", func() { gridNY = cfg.Grid.NY })
	set("load", func() { loadFy = cfg.Grid.LoadFy })
	set("material", func() { material = cfg.Material })
	set("target", func() { targetMass = cfg.Limits.TargetMassFraction })
	set("iters", func() { maxIters = cfg.Limits.MaxIters })
	set("max-stress", func() { maxStress = cfg.Limits.MaxStressPa })
	set("remove", func() {
		if cfg.Energy.RemoveFraction > 0 {
			removeFraction = cfg.Energy.RemoveFraction
		}
	})
	set("start-factor", func() {
		if cfg.Energy.StartFactor > 0 {
			startFactor = cfg.Energy.StartFactor
		}
	})
	set("ramp", func() {
		if cfg.Energy.RampIters > 0 {
			rampIters = cfg.Energy.RampIters
		}
	})
	set("omega", func() { omegaExc = cfg.Dynamic.OmegaExcitation })
	set("alpha", func() {
		if cfg.Dynamic.Alpha > 0 {
			alpha = cfg.Dynamic.Alpha
		}
	})
	set("node-mass", func() {
		if cfg.Dynamic.NodeMass > 0 {
			nodeMass = cfg.Dynamic.NodeMass
		}
	})
	set("volume", func() {
		if cfg.SIMP.VolumeFraction > 0 {
			volumeFraction = cfg.SIMP.VolumeFraction
		}
	})
	set("penalty", func() {
		if cfg.SIMP.Penalty > 0 {
			penalty = cfg.SIMP.Penalty
		}
	})
	set("move-limit", func() {
		if cfg.SIMP.MoveLimit > 0 {
			moveLimit = cfg.SIMP.MoveLimit
		}
	})
}

func runSweep(cmd *cobra.Command, args []string) error {
	catalog, err := openMaterials()
	if err != nil {
		return err
	}
	mat, err := catalog.Get(material)
	if err != nil {
		return err
	}

	gridOpts := grid.Options{
		Width: gridWidth, Height: gridHeight,
		NX: gridNX, NY: gridNY, SpringK: 1.0,
	}
	st, err := grid.Generate(gridOpts)
	if err != nil {
		return err
	}
	if err := grid.SimplySupportedBeam(st, gridOpts, loadFy); err != nil {
		return err
	}
	if err := st.UpdateStiffness(mat.EModPa, mat.AreaM2, mat.Density); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	removeFractions := []float64{0.01, 0.02, 0.04}
	startFactors := []float64{0.25, 0.5, 1.0}
	opts := optimize.Options{
		TargetMassFraction: targetMass,
		MaxIters:           maxIters,
		MaxStress:          mat.YieldPa,
	}

	fmt.Printf("sweeping %d combinations...\n", len(removeFractions)*len(startFactors))
	start := time.Now()
	result, err := optimize.SweepEnergy(ctx, st, opts, removeFractions, startFactors, config.DefaultRampIters)
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n\n", time.Since(start))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REMOVE\tSTART\tMASS\tMAX DISP\tSTOP")
	for _, p := range result.Points {
		fmt.Fprintf(w, "%.3f\t%.2f\t%.3f\t%.4g\t%s\n",
			p.RemoveFraction, p.StartFactor, p.MassFraction, p.MaxDisplacement, p.StopReason)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if result.Best == nil || result.BestStructure == nil {
		return fmt.Errorf("no sweep point produced a usable structure")
	}
	fmt.Printf("\nbest: remove %.3f start %.2f (mass %.3f)\n",
		result.Best.RemoveFraction, result.Best.StartFactor, result.Best.MassFraction)

	cases, err := openCases()
	if err != nil {
		return err
	}
	name := caseName
	if name == "" {
		name = fmt.Sprintf("sweep_%dx%d", gridNX, gridNY)
	}
	id, err := cases.Save(name, "energy", result.BestStructure, nil)
	if err != nil {
		return err
	}
	fmt.Printf("case id: %s\n", id)
	return nil
}

func runRebuild(cmd *cobra.Command, args []string) error {
	cases, err := openCases()
	if err != nil {
		return err
	}
	st, history, meta, err := cases.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("rebuilding case %s (%s)...\n", meta.ID, meta.Name)
	opts := optimize.DefaultRebuildOptions()
	opts.OnProgress = func(tested, total int) {
		if total > 0 && tested%50 == 0 {
			fmt.Printf("  tested %d/%d combinations\n", tested, total)
		}
	}
	result := optimize.RebuildSupport(st, opts)
	fmt.Println(result.Message)
	if len(result.ReactivatedNodeIDs) == 0 {
		return nil
	}

	name := caseName
	if name == "" {
		name = meta.Name + "_rebuilt"
	}
	id, err := cases.Save(name, meta.Optimizer, st, history)
	if err != nil {
		return err
	}
	fmt.Printf("case id: %s\n", id)
	return nil
}

func listCases(cmd *cobra.Command, args []string) error {
	cases, err := openCases()
	if err != nil {
		return err
	}
	metas, err := cases.List()
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println("no cases found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED\tOPTIMIZER\tITERS\tNODES\tSTOP")
	for _, meta := range metas {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d/%d\t%s\n",
			meta.ID,
			meta.Name,
			meta.CreatedAt.Format("2006-01-02 15:04:05"),
			meta.Optimizer,
			meta.Iterations,
			meta.NodesActive,
			meta.NodesTotal,
			meta.StopReason,
		)
	}
	return w.Flush()
}

func showCase(cmd *cobra.Command, args []string) error {
	cases, err := openCases()
	if err != nil {
		return err
	}
	st, history, meta, err := cases.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}

	fmt.Printf("\nactive nodes: %d/%d\n", st.ActiveNodeCount(), len(st.Nodes))
	active := 0
	for i := range st.Springs {
		if st.Springs[i].Active {
			active++
		}
	}
	fmt.Printf("active springs: %d/%d\n", active, len(st.Springs))
	fmt.Printf("mass fraction: %.3f\n", st.MassFraction())

	if u, err := solveCurrent(st); err == nil {
		fmt.Printf("max displacement: %.6g m\n", solver.MaxAbsDisplacement(u))
		fmt.Printf("max stress: %.6g Pa\n", st.MaxStress(u))
	} else {
		fmt.Println("structure is singular in its current state")
	}

	if history != nil && history.Iterations() > 0 {
		fmt.Printf("\niterations: %d, total removed: %d\n", history.Iterations(), history.TotalRemoved())
	}
	return nil
}

func plotCase(cmd *cobra.Command, args []string) error {
	cases, err := openCases()
	if err != nil {
		return err
	}
	_, history, meta, err := cases.Load(args[0])
	if err != nil {
		return err
	}
	if history == nil || history.Iterations() == 0 {
		return fmt.Errorf("no history to plot")
	}

	fmt.Printf("case: %s\n", meta.ID)
	fmt.Printf("optimizer: %s\n", meta.Optimizer)
	fmt.Printf("samples: %d\n\n", history.Iterations())

	series := []struct {
		name string
		data []float64
	}{
		{"mass fraction", history.MassFraction},
		{"max displacement", history.MaxDisplacement},
		{"omega1 (rad/s)", history.Omega1},
		{"frequency distance", history.FreqDistance},
		{"compliance", history.Compliance},
		{"volume fraction", history.VolumeFraction},
	}
	for _, s := range series {
		if len(s.data) < 2 {
			continue
		}
		graph := asciigraph.Plot(s.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.name),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportCase(cmd *cobra.Command, args []string) error {
	cases, err := openCases()
	if err != nil {
		return err
	}
	st, _, _, err := cases.Load(args[0])
	if err != nil {
		return err
	}

	opts := export.DefaultSVGOptions()
	if u, err := solveCurrent(st); err == nil {
		opts.Stresses = st.SpringStresses(u)
	}
	if err := export.WriteSVG(outFile, st, opts); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outFile)
	return nil
}

func solveCurrent(st *model.Structure) ([]float64, error) {
	k, err := st.AssembleStiffness()
	if err != nil {
		return nil, err
	}
	return solver.Solve(k, st.AssembleLoad(), st.FixedDofs())
}

func listMaterials(cmd *cobra.Command, args []string) error {
	catalog, err := openMaterials()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tE-MOD (GPa)\tAREA (cm2)\tDENSITY (kg/m3)\tYIELD (MPa)")
	for _, m := range catalog.List() {
		fmt.Fprintf(w, "%s\t%.1f\t%.2f\t%.0f\t%.0f\n",
			m.Name, m.EModPa/1e9, m.AreaM2*1e4, m.Density, m.YieldPa/1e6)
	}
	return w.Flush()
}

func addMaterial(cmd *cobra.Command, args []string) error {
	catalog, err := openMaterials()
	if err != nil {
		return err
	}
	return catalog.Add(store.Material{
		Name:    args[0],
		EModPa:  matEMod,
		AreaM2:  matArea,
		Density: matDensity,
		YieldPa: matYield,
	})
}

func deleteMaterial(cmd *cobra.Command, args []string) error {
	catalog, err := openMaterials()
	if err != nil {
		return err
	}
	removed, err := catalog.Delete(args[0])
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("material %q not found (builtins cannot be deleted)", args[0])
	}
	return nil
}
