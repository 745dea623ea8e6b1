package domain

// PermissionSet вычисляется для пары (пользователь, сделка) и никогда не хранится
type PermissionSet struct {
	CanUpload      bool `json:"canUpload"`
	CanDelete      bool `json:"canDelete"`
	CanAddVersions bool `json:"canAddVersions"`
	CanShare       bool `json:"canShare"`
	CanAnalyze     bool `json:"canAnalyze"`
	UploadsOpen    bool `json:"uploadsOpen"`
}
