package logger

// Config holds logger configuration.
type Config struct {
	Level      int    `json:"level" yaml:"level"`             // logrus level, 4 = info
	Format     string `json:"format" yaml:"format"`           // json or text
	Output     string `json:"output" yaml:"output"`           // stdout, stderr or file
	OutputFile string `json:"output_file" yaml:"output_file"` // path when output is file
}
