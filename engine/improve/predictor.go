package improve

// minTrainingPoints is the least number of trend values to fit a model on
const minTrainingPoints = 5

type linearModel struct {
	intercept float64
	slope     float64
	n         int
}

// Predictor forecasts the next performance ratio of each system with a least squares line
type Predictor struct {
	models map[string]linearModel
}

// NewPredictor creates an untrained predictor
func NewPredictor() *Predictor {
	return &Predictor{models: map[string]linearModel{}}
}

// Train fits one model per system trend; trends with too few values are skipped
func (p *Predictor) Train(trends map[string][]float64) {
	p.models = make(map[string]linearModel, len(trends))
	for system, values := range trends {
		if len(values) < minTrainingPoints {
			continue
		}
		p.models[system] = fitLine(values)
	}
}

// Predict returns the predicted next ratio of the system
func (p *Predictor) Predict(system string) (float64, bool) {
	m, ok := p.models[system]
	if !ok {
		return 0, false
	}
	return m.intercept + m.slope*float64(m.n), true
}

// fitLine fits y = intercept + slope*x with x = 0..n-1
func fitLine(values []float64) linearModel {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	m := linearModel{n: len(values)}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		m.intercept = sumY / n
		return m
	}
	m.slope = (n*sumXY - sumX*sumY) / denom
	m.intercept = (sumY - m.slope*sumX) / n
	return m
}
