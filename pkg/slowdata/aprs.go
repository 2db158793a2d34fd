package slowdata

// APRSCollector fans descrambled slow-data bytes out to every known
// sentence collector and reads back whichever one completes, directly
// grounded on original_source's APRSCollector.cpp (writeHeader fans
// setMyCall, writeData ORs each sub-collector's result, getData finds
// the collector matching the requested type).
type APRSCollector struct {
	collectors []Collector
}

// nmeaPrefixes are the sentence types original_source's
// CAPRSCollector constructs one CNMEASentenceCollector per.
var nmeaPrefixes = []string{
	"$GPRMC", "$GPGGA", "$GPGLL", "$GPVTG", "$GPGSA", "$GPGSV",
}

// NewAPRSCollector builds the GPS-A collector plus one NMEA collector
// per known sentence prefix.
func NewAPRSCollector() *APRSCollector {
	c := &APRSCollector{
		collectors: make([]Collector, 0, len(nmeaPrefixes)+1),
	}
	c.collectors = append(c.collectors, NewGPSACollector())
	for _, prefix := range nmeaPrefixes {
		c.collectors = append(c.collectors, NewNMEACollector(prefix))
	}
	return c
}

// WriteHeader stamps the outgoing callsign on every sub-collector.
func (c *APRSCollector) WriteHeader(callsign string) {
	for _, sub := range c.collectors {
		sub.SetMyCall(callsign)
	}
}

// WriteData feeds one byte to every sub-collector and reports whether
// any of them completed a sentence.
func (c *APRSCollector) WriteData(b byte) bool {
	complete := false
	for _, sub := range c.collectors {
		if sub.WriteData(b) {
			complete = true
		}
	}
	return complete
}

// Reset resets every sub-collector.
func (c *APRSCollector) Reset() {
	for _, sub := range c.collectors {
		sub.Reset()
	}
}

// Sync resets every sub-collector on a slow-data sync frame.
func (c *APRSCollector) Sync() {
	for _, sub := range c.collectors {
		sub.Sync()
	}
}

// GetData returns the completed APRS-IS line from whichever
// sub-collector matches dataType, if any is ready.
func (c *APRSCollector) GetData(dataType DataType) (string, bool) {
	for _, sub := range c.collectors {
		if sub.DataType() != dataType {
			continue
		}
		if line, ok := sub.GetData(); ok {
			return line, true
		}
	}
	return "", false
}
