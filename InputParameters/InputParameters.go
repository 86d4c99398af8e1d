package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type SimulationParameters struct {
	Title string `yaml:"Title"`

	// Grid: a 1D column of NumCells cells, sizes in meters,
	// permeability in m2
	NumCells     int     `yaml:"NumCells"`
	DX           float64 `yaml:"DX"`
	DY           float64 `yaml:"DY"`
	DZ           float64 `yaml:"DZ"`
	Permeability float64 `yaml:"Permeability"`
	Porosity     float64 `yaml:"Porosity"`

	HasDisgas bool `yaml:"HasDisgas"`
	HasVapoil bool `yaml:"HasVapoil"`

	// Uniform initial state
	InitialPressure float64 `yaml:"InitialPressure"`
	InitialSw       float64 `yaml:"InitialSw"`
	InitialSo       float64 `yaml:"InitialSo"`
	InitialSg       float64 `yaml:"InitialSg"`

	ReportStepDays []float64 `yaml:"ReportStepDays"`

	// Newton model tolerances and update bounds
	ToleranceMB        float64 `yaml:"ToleranceMB"`
	ToleranceCNV       float64 `yaml:"ToleranceCNV"`
	ToleranceWells     float64 `yaml:"ToleranceWells"`
	MaxStrictIter      int     `yaml:"MaxStrictIter"`
	MaxResidualAllowed float64 `yaml:"MaxResidualAllowed"`
	DpMaxRel           float64 `yaml:"DpMaxRel"`
	DsMax              float64 `yaml:"DsMax"`
	DrMaxRel           float64 `yaml:"DrMaxRel"`

	// Well model
	DWellFractionMax     float64 `yaml:"DWellFractionMax"`
	DBHPMaxRel           float64 `yaml:"DBHPMaxRel"`
	MaxWellEqIter        int     `yaml:"MaxWellEqIter"`
	SolveWellEqInitially bool    `yaml:"SolveWellEqInitially"`

	// Outer Newton loop
	MinIter        int     `yaml:"MinIter"`
	MaxIter        int     `yaml:"MaxIter"`
	RelaxType      string  `yaml:"RelaxType"`
	RelaxMax       float64 `yaml:"RelaxMax"`
	RelaxIncrement float64 `yaml:"RelaxIncrement"`
	RelaxRelTol    float64 `yaml:"RelaxRelTol"`

	// Adaptive timestepping
	RestartFactor          float64 `yaml:"RestartFactor"`
	GrowthFactor           float64 `yaml:"GrowthFactor"`
	MaxGrowth              float64 `yaml:"MaxGrowth"`
	MaxTimeStepDays        float64 `yaml:"MaxTimeStepDays"`
	InitialTimeStepDays    float64 `yaml:"InitialTimeStepDays"`
	TimeStepAfterEventDays float64 `yaml:"TimeStepAfterEventDays"`
	SolverRestartMax       int     `yaml:"SolverRestartMax"`
	FullTimeStepInitially  bool    `yaml:"FullTimeStepInitially"`
	TimeStepControl        string  `yaml:"TimeStepControl"`
	ControlTol             float64 `yaml:"ControlTol"`
	TargetIterations       int     `yaml:"TargetIterations"`
	DecayRate              float64 `yaml:"DecayRate"`
	GrowthRate             float64 `yaml:"GrowthRate"`
	ControlFileName        string  `yaml:"ControlFileName"`

	Wells     []WellParameters     `yaml:"Wells"`
	VFPTables []VFPTableParameters `yaml:"VFPTables"`
}

type WellParameters struct {
	Name           string                  `yaml:"Name"`
	Type           string                  `yaml:"Type"` // "injector" or "producer"
	CompFrac       [3]float64              `yaml:"CompFrac"`
	Cells          []int                   `yaml:"Cells"`
	WI             []float64               `yaml:"WI"`
	PerfDepth      []float64               `yaml:"PerfDepth"`
	RefDepth       float64                 `yaml:"RefDepth"`
	AllowCrossFlow bool                    `yaml:"AllowCrossFlow"`
	EfficiencyFac  float64                 `yaml:"EfficiencyFac"`
	WSolvent       float64                 `yaml:"WSolvent"`
	WPolymer       float64                 `yaml:"WPolymer"`
	Controls       []WellControlParameters `yaml:"Controls"`
	MinOilRate     float64                 `yaml:"MinOilRate"`
	MinGasRate     float64                 `yaml:"MinGasRate"`
	MinLiquidRate  float64                 `yaml:"MinLiquidRate"`
	MaxWaterCut    float64                 `yaml:"MaxWaterCut"`
	EndRun         bool                    `yaml:"EndRun"`
}

type WellControlParameters struct {
	Type     string     `yaml:"Type"` // "BHP", "THP", "RATE", "RESV"
	Target   float64    `yaml:"Target"`
	Distr    [3]float64 `yaml:"Distr"`
	VFPTable int        `yaml:"VFPTable"`
	ALQ      float64    `yaml:"ALQ"`
}

type VFPTableParameters struct {
	Table      int     `yaml:"Table"`
	DatumDepth float64 `yaml:"DatumDepth"`
	RateCoeff  float64 `yaml:"RateCoeff"`
}

// Defaults returns the parameter set with every tolerance and control
// at its standard value; Parse overlays the file on top
func Defaults() *SimulationParameters {
	return &SimulationParameters{
		NumCells:     10,
		DX:           10,
		DY:           10,
		DZ:           5,
		Permeability: 1.e-13,
		Porosity:     0.3,

		InitialPressure: 2.e7,
		InitialSw:       0.2,
		InitialSo:       0.5,
		InitialSg:       0.3,

		ReportStepDays: []float64{30},

		ToleranceMB:        1.e-5,
		ToleranceCNV:       1.e-2,
		ToleranceWells:     1.e-4,
		MaxStrictIter:      8,
		MaxResidualAllowed: 1.e7,
		DpMaxRel:           0.3,
		DsMax:              0.2,
		DrMaxRel:           1.e9,

		DWellFractionMax:     0.2,
		DBHPMaxRel:           1.0,
		MaxWellEqIter:        15,
		SolveWellEqInitially: true,

		MinIter:        1,
		MaxIter:        15,
		RelaxType:      "dampen",
		RelaxMax:       0.5,
		RelaxIncrement: 0.1,
		RelaxRelTol:    0.2,

		RestartFactor:          0.33,
		GrowthFactor:           2.0,
		MaxGrowth:              3.0,
		MaxTimeStepDays:        365,
		InitialTimeStepDays:    -1,
		TimeStepAfterEventDays: -1,
		SolverRestartMax:       10,
		TimeStepControl:        "pid",
		ControlTol:             1.e-1,
		DecayRate:              0.75,
		GrowthRate:             1.25,
	}
}

func (sp *SimulationParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, sp)
}

func (sp *SimulationParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", sp.Title)
	fmt.Printf("[%d x %.1f x %.1f x %.1f]\t= Grid (cells x DX x DY x DZ)\n",
		sp.NumCells, sp.DX, sp.DY, sp.DZ)
	fmt.Printf("%8.3g\t\t= Permeability\n", sp.Permeability)
	fmt.Printf("%8.5f\t\t= Porosity\n", sp.Porosity)
	fmt.Printf("[disgas=%v vapoil=%v]\t= Fluid options\n", sp.HasDisgas, sp.HasVapoil)
	fmt.Printf("%8.3e\t\t= InitialPressure\n", sp.InitialPressure)
	fmt.Printf("%v\t\t= ReportStepDays\n", sp.ReportStepDays)
	fmt.Printf("[%s]\t\t\t= TimeStepControl\n", sp.TimeStepControl)
	for _, w := range sp.Wells {
		fmt.Printf("Well[%s] = %s, %d perforations, %d controls\n",
			w.Name, w.Type, len(w.Cells), len(w.Controls))
	}
}

func (sp *SimulationParameters) Validate() error {
	if sp.NumCells < 1 {
		return fmt.Errorf("NumCells must be positive, got %d", sp.NumCells)
	}
	if len(sp.ReportStepDays) == 0 {
		return fmt.Errorf("at least one report step is required")
	}
	for _, d := range sp.ReportStepDays {
		if d <= 0 {
			return fmt.Errorf("non-positive report step of %g days", d)
		}
	}
	sum := sp.InitialSw + sp.InitialSo + sp.InitialSg
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("initial saturations sum to %g, expected 1", sum)
	}
	for _, w := range sp.Wells {
		if w.Type != "injector" && w.Type != "producer" {
			return fmt.Errorf("well %s: unknown type %q", w.Name, w.Type)
		}
		if len(w.Controls) == 0 {
			return fmt.Errorf("well %s: no controls", w.Name)
		}
		for _, c := range w.Controls {
			switch c.Type {
			case "BHP", "THP", "RATE", "RESV":
			default:
				return fmt.Errorf("well %s: unknown control type %q", w.Name, c.Type)
			}
		}
	}
	return nil
}
