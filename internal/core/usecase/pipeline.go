package usecase

// CertificatePipeline bundles the interactive and batch upload paths behind
// the inbound ports. File-count routing lives in the HTTP adapter: exactly
// one file starts a session, two or more run a batch.
type CertificatePipeline struct {
	*UploadCertificateUseCase
	*BatchUploadUseCase
}

func NewCertificatePipeline(single *UploadCertificateUseCase, batch *BatchUploadUseCase) *CertificatePipeline {
	return &CertificatePipeline{
		UploadCertificateUseCase: single,
		BatchUploadUseCase:       batch,
	}
}
