package profile

// StaticProber answers capability probes from a fixed table. It serves
// environments without a live decoder to interrogate, where capabilities
// are known from the playback binary rather than probed at runtime.
type StaticProber struct {
	Supported map[string]Support // Keyed by the candidate codecs string
}

func (p StaticProber) Probe(mimeType, codecs string) (Support, error) {
	if s, ok := p.Supported[codecs]; ok {
		return s, nil
	}
	return SupportNo, nil
}

// SoftwareDecoderProber returns the capability table for a full software
// decoder stack: every common codec short of Dolby Vision, which needs
// display-side support no software path provides.
func SoftwareDecoderProber() StaticProber {
	supported := make(map[string]Support)
	for _, c := range videoCandidates {
		if c.codec == "dovi" {
			continue
		}
		supported[c.codecsAttr] = SupportProbably
	}
	for _, c := range audioCandidates {
		supported[c.codecsAttr] = SupportProbably
	}
	return StaticProber{Supported: supported}
}
