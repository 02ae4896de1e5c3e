package model

// Study describes one DICOM study as listed by the remote album service.
type Study struct {
	StudyUID    string `json:"study_uid"`
	StudyDate   string `json:"study_date,omitempty"`
	Description string `json:"description,omitempty"`
	PatientID   string `json:"patient_id,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
}

// Series describes one series within a study.
type Series struct {
	SeriesUID   string `json:"series_uid"`
	StudyUID    string `json:"study_uid"`
	Description string `json:"description,omitempty"`
	Modality    string `json:"modality,omitempty"`

	// InstanceCount is the number of instances the album reports for this
	// series, or 0 when the album did not say.
	InstanceCount int `json:"instance_count,omitempty"`
}

// Instance identifies one retrievable image within a series.
type Instance struct {
	InstanceUID string `json:"instance_uid"`
	SeriesUID   string `json:"series_uid"`
	StudyUID    string `json:"study_uid"`
}
