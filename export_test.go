package typedsql

// RowsOpened returns the number of result sets opened and closed through
// the tracked driver for the given test.
func RowsOpened(testName string) (opened, closed int) {
	rowsMutex.Lock()
	defer rowsMutex.Unlock()
	return openRows[testName], closedRows[testName]
}

// QueriesRun returns the number of statements that reached the tracked
// driver for the given test.
func QueriesRun(testName string) int {
	rowsMutex.Lock()
	defer rowsMutex.Unlock()
	return queriesRun[testName]
}
