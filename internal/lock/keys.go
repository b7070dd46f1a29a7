package lock

import "fmt"

func SweepKey(jobName string) string {
	return fmt.Sprintf("apperrors:sweep:%s", jobName)
}
