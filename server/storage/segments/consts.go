package segments

// Constants.
const dataDirName = "data"
const metadataDirName = "metadata"
const metadataDbName = "metadata.db"
const metadataKeyName = "metadata"
const kRecordKeyPrefix = "r"
