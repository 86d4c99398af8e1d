/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/notargets/gores/InputParameters"
	"github.com/notargets/gores/fluid"
	"github.com/notargets/gores/nonlinear"
	"github.com/notargets/gores/simulator"
	"github.com/notargets/gores/state"
	"github.com/notargets/gores/timestepping"
	"github.com/notargets/gores/wells"
)

type RunModel struct {
	CaseFile string
	Profile  bool
	Verbose  bool
}

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a black-oil simulation case from a YAML file",
	Long:  `Run a black-oil simulation case from a YAML file`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		rm := &RunModel{}
		if rm.CaseFile, err = cmd.Flags().GetString("inputFile"); err != nil {
			panic(err)
		}
		rm.Profile, _ = cmd.Flags().GetBool("profile")
		rm.Verbose, _ = cmd.Flags().GetBool("verbose")
		sp := processInput(rm)
		if rm.Profile {
			defer profile.Start(profile.CPUProfile).Stop()
		}
		if err = RunCase(sp, rm.Verbose); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(RunCmd)
	RunCmd.Flags().StringP("inputFile", "I", "",
		"YAML case file with grid, fluid, wells and solver settings")
	RunCmd.Flags().Bool("profile", false, "write a CPU profile of the run")
	RunCmd.Flags().BoolP("verbose", "v", true, "print substep and iteration tables")
}

func processInput(rm *RunModel) (sp *InputParameters.SimulationParameters) {
	var (
		err error
	)
	if len(rm.CaseFile) == 0 {
		err = fmt.Errorf("must supply a case file (-I, --inputFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Quarter well pair"
NumCells: 20
DX: 10.
DY: 10.
DZ: 5.
Permeability: 1.e-13
Porosity: 0.3
HasDisgas: true
InitialPressure: 2.e7
InitialSw: 0.2
InitialSo: 0.5
InitialSg: 0.3
ReportStepDays: [30, 30, 30]
TimeStepControl: "pid+iteration"
Wells:
  - Name: "INJ"
    Type: "injector"
    CompFrac: [1, 0, 0]
    Cells: [0]
    WI: [1.e-12]
    PerfDepth: [2500]
    RefDepth: 2500
    Controls:
      - Type: "RATE"
        Target: 0.01
        Distr: [1, 0, 0]
  - Name: "PROD"
    Type: "producer"
    CompFrac: [0, 1, 0]
    Cells: [19]
    WI: [1.e-12]
    PerfDepth: [2500]
    RefDepth: 2500
    Controls:
      - Type: "BHP"
        Target: 1.8e7
########################################
`
		fmt.Printf("Example file contents:%s\n", exampleFile)
		os.Exit(1)
	}
	data, err := os.ReadFile(rm.CaseFile)
	if err != nil {
		fmt.Printf("error reading input parameters file: %s\n", err.Error())
		os.Exit(1)
	}
	sp = InputParameters.Defaults()
	if err = sp.Parse(data); err != nil {
		fmt.Printf("error parsing input parameters file: %s\n", err.Error())
		os.Exit(1)
	}
	if err = sp.Validate(); err != nil {
		fmt.Printf("error in input parameters: %s\n", err.Error())
		os.Exit(1)
	}
	sp.Print()
	return
}

// RunCase builds the grid, fluid, wells and solvers from the case
// parameters and advances the schedule report step by report step
func RunCase(sp *InputParameters.SimulationParameters, verbose bool) (err error) {
	var (
		caps = state.Capabilities{HasDisgas: sp.HasDisgas, HasVapoil: sp.HasVapoil}
		f    = fluid.Default(caps)
	)
	g, err := simulator.NewBlackoilGrid(sp.NumCells, sp.DX, sp.DY, sp.DZ,
		sp.Permeability, sp.Porosity, f)
	if err != nil {
		return
	}

	rs := state.NewReservoirState(sp.NumCells, 3, caps)
	for c := 0; c < sp.NumCells; c++ {
		rs.Pressure[c] = sp.InitialPressure
		rs.SetSat(c, state.Water, sp.InitialSw)
		rs.SetSat(c, state.Oil, sp.InitialSo)
		rs.SetSat(c, state.Gas, sp.InitialSg)
		rs.Rs[c] = f.RsSat(sp.InitialPressure)
		rs.Rv[c] = f.RvSat(sp.InitialPressure)
	}

	wellsIn, vfp, err := buildWells(sp)
	if err != nil {
		return
	}
	ws := state.NewWellState(wellsIn, rs, 3, caps.NumEq())
	wcfg := wells.Config{
		DWellFractionMax:     sp.DWellFractionMax,
		DBHPMaxRel:           sp.DBHPMaxRel,
		ToleranceWells:       sp.ToleranceWells,
		MaxResidualAllowed:   sp.MaxResidualAllowed,
		MaxWellEqIter:        sp.MaxWellEqIter,
		SolveWellEqInitially: sp.SolveWellEqInitially,
	}
	sw := wells.NewStandardWells(wellsIn, caps, state.AllPhases(), f, wcfg,
		simulator.SerialComm{}, simulator.Gravity, vfp)

	mcfg := nonlinear.DefaultModelConfig()
	mcfg.ToleranceMB = sp.ToleranceMB
	mcfg.ToleranceCNV = sp.ToleranceCNV
	mcfg.MaxStrictIter = sp.MaxStrictIter
	mcfg.MaxResidualAllowed = sp.MaxResidualAllowed
	mcfg.DpMaxRel = sp.DpMaxRel
	mcfg.DsMax = sp.DsMax
	mcfg.DrMaxRel = sp.DrMaxRel
	mcfg.TerminalOutput = verbose
	model := nonlinear.NewModel(g, sw, f, mcfg, simulator.SerialComm{})

	solver := nonlinear.NewSolver(nonlinear.SolverConfig{
		MaxIter:        sp.MaxIter,
		MinIter:        sp.MinIter,
		RelaxMax:       sp.RelaxMax,
		RelaxIncrement: sp.RelaxIncrement,
		RelaxRelTol:    sp.RelaxRelTol,
		RelaxType:      sp.RelaxType,
	}, model)

	tcfg := timestepping.Config{
		RestartFactor:         sp.RestartFactor,
		GrowthFactor:          sp.GrowthFactor,
		MaxGrowth:             sp.MaxGrowth,
		MaxTimeStep:           sp.MaxTimeStepDays * timestepping.Day,
		SolverRestartMax:      sp.SolverRestartMax,
		InitialTimeStep:       sp.InitialTimeStepDays * timestepping.Day,
		FullTimestepInitially: sp.FullTimeStepInitially,
		TimeStepAfterEvent:    sp.TimeStepAfterEventDays * timestepping.Day,
		Control:               sp.TimeStepControl,
		Tol:                   sp.ControlTol,
		TargetIterations:      sp.TargetIterations,
		DecayRate:             sp.DecayRate,
		GrowthRate:            sp.GrowthRate,
		ControlFilename:       sp.ControlFileName,
		SolverVerbose:         verbose,
		TimestepVerbose:       verbose,
	}
	stepping, err := timestepping.NewAdaptiveTimeStepping(tcfg)
	if err != nil {
		return
	}

	steps := make([]float64, len(sp.ReportStepDays))
	for i, d := range sp.ReportStepDays {
		steps[i] = d * timestepping.Day
	}
	timer := timestepping.NewSimulatorTimer(steps)
	econ := wells.NewEconLimited()

	var total simulator.Report
	for !timer.Done() {
		if verbose {
			fmt.Printf("Report step %d of %d, length %g days\n",
				timer.CurrentStepNum()+1, timer.NumSteps(),
				timer.CurrentStepLength()/timestepping.Day)
		}
		var report simulator.Report
		if report, err = stepping.Step(timer, solver, rs, ws, false); err != nil {
			return
		}
		total.Add(report)
		total.Add(stepping.FailureReport())
		sw.UpdateListEconLimited(ws, econ)
		timer.Advance()
	}
	total.Print()
	return
}

func buildWells(sp *InputParameters.SimulationParameters) (W *state.Wells,
	vfp map[int]wells.VFPTable, err error) {
	list := make([]state.Well, 0, len(sp.Wells))
	for _, wp := range sp.Wells {
		wt := state.Producer
		if wp.Type == "injector" {
			wt = state.Injector
		}
		controls := make([]state.WellControl, 0, len(wp.Controls))
		for _, cp := range wp.Controls {
			var ct state.ControlType
			switch cp.Type {
			case "BHP":
				ct = state.BHPControl
			case "THP":
				ct = state.THPControl
			case "RATE":
				ct = state.SurfaceRateControl
			case "RESV":
				ct = state.ReservoirRateControl
			}
			controls = append(controls, state.WellControl{
				Type: ct, Target: cp.Target, Distr: cp.Distr,
				VFPTable: cp.VFPTable, ALQ: cp.ALQ,
			})
		}
		eff := wp.EfficiencyFac
		if eff == 0 {
			eff = 1
		}
		list = append(list, state.Well{
			Name:           wp.Name,
			Type:           wt,
			CompFrac:       wp.CompFrac,
			Cells:          wp.Cells,
			WI:             wp.WI,
			PerfDepth:      wp.PerfDepth,
			RefDepth:       wp.RefDepth,
			Controls:       controls,
			AllowCrossFlow: wp.AllowCrossFlow,
			EfficiencyFac:  eff,
			WSolvent:       wp.WSolvent,
			WPolymer:       wp.WPolymer,
			Econ: state.EconLimits{
				MinOilRate:    wp.MinOilRate,
				MinGasRate:    wp.MinGasRate,
				MinLiquidRate: wp.MinLiquidRate,
				MaxWaterCut:   wp.MaxWaterCut,
				EndRun:        wp.EndRun,
			},
		})
	}
	W = &state.Wells{W: list}
	if err = W.Validate(sp.NumCells); err != nil {
		return nil, nil, err
	}
	vfp = make(map[int]wells.VFPTable)
	for _, tp := range sp.VFPTables {
		vfp[tp.Table] = wells.VFPTable{
			DatumDepth: tp.DatumDepth,
			RateCoeff:  tp.RateCoeff,
		}
	}
	return
}
