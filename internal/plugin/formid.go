package plugin

// LocalFormIDAndMaster decodes a plugin-local form-id into its local id and
// owning master filename.
// The top 8 bits of formID index into masters; if that index is out of
// range, the plugin itself (selfName) is the owner.
func LocalFormIDAndMaster(formID uint32, masters []string, selfName string) (localID uint32, master string) {
	masterIndex := formID >> 24
	localID = formID & 0x00FFFFFF
	if int(masterIndex) >= len(masters) {
		return localID, selfName
	}
	return localID, masters[masterIndex]
}
