package measure

// ProcessMemoryMB returns the resident set size of the current process in
// binary megabytes. It is a coarse, process-wide reading.
func ProcessMemoryMB() (float64, error) {
	b, e := residentBytes()
	if nil != e {
		return 0, e
	}
	return BytesToMB(b), nil
}
